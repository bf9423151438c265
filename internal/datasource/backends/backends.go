// Package backends holds the concrete data source implementations — one
// file per backend, registered through factory closures so nothing is
// constructed until a query actually needs it.
package backends

import (
	"log/slog"

	"mcpql/internal/config"
	"mcpql/internal/datasource"
)

// RegisterAll registers every backend with the registry. Sort order
// decides sniffing precedence; the MCP tool backend goes last because its
// sniff accepts any MCPQL text.
func RegisterAll(reg *datasource.Registry, cfg *config.Config, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	regs := []datasource.Registration{
		{
			ID:            "kusto",
			DisplayName:   "Kusto Cluster",
			Icon:          "IconChartDots",
			QueryLanguage: "kql",
			SortOrder:     1,
			Enabled:       !cfg.Sources.Kusto.Disabled,
			Factory: func() (datasource.DataSource, error) {
				return newKustoSource(cfg.Sources.Kusto, logger), nil
			},
		},
		{
			ID:            "workitems",
			DisplayName:   "Work Items",
			Icon:          "IconClipboardList",
			QueryLanguage: "wiql",
			SortOrder:     2,
			Enabled:       !cfg.Sources.WorkItems.Disabled,
			Factory: func() (datasource.DataSource, error) {
				return newWorkItemsSource(cfg.Sources.WorkItems, logger), nil
			},
		},
		{
			ID:            "mailstore",
			DisplayName:   "Local Mail",
			Icon:          "IconMail",
			QueryLanguage: "mcpql",
			SortOrder:     3,
			Enabled:       !cfg.Sources.MailStore.Disabled,
			Factory: func() (datasource.DataSource, error) {
				return newMailStoreSource(cfg.Sources.MailStore, logger), nil
			},
		},
		{
			ID:            "database",
			DisplayName:   "Database",
			Icon:          "IconDatabase",
			QueryLanguage: "sql",
			SortOrder:     4,
			Enabled:       !cfg.Sources.Database.Disabled,
			Factory: func() (datasource.DataSource, error) {
				return newDatabaseSource(cfg.Sources.Database, logger), nil
			},
		},
		{
			ID:            "mcptool",
			DisplayName:   "MCP Tools",
			Icon:          "IconPlug",
			QueryLanguage: "mcpql",
			SortOrder:     5,
			Enabled:       !cfg.Sources.MCPTool.Disabled,
			Factory: func() (datasource.DataSource, error) {
				return newMCPToolSource(cfg.Sources.MCPTool, logger), nil
			},
		},
	}

	for _, r := range regs {
		if err := reg.Register(r); err != nil {
			return err
		}
	}
	return nil
}
