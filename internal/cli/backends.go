package cli

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/avantgardnerio/hermitage/internal/backend"
)

// BackendInfo describes one registered backend.
type BackendInfo struct {
	Name      string `json:"name"`
	Driver    string `json:"driver"`
	Settle    string `json:"settle"`
	StepDelay string `json:"step_delay"`
	Cleanup   string `json:"cleanup,omitempty"`
}

// NewBackendsCommand creates the backends command.
func NewBackendsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "backends",
		Short:         "List supported backends",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.outputFormatter(cmd)
			infos := listBackends()
			if f.JSON() {
				return f.Success(infos)
			}

			rows := make([]table.Row, 0, len(infos))
			for _, info := range infos {
				rows = append(rows, table.Row{info.Name, info.Driver, info.Settle, info.StepDelay, info.Cleanup})
			}
			f.Table(table.Row{"Backend", "Driver", "Settle", "Step delay", "Cleanup"}, rows)
			return nil
		},
	}
}

func listBackends() []BackendInfo {
	names := backend.List()
	infos := make([]BackendInfo, 0, len(names))
	for _, name := range names {
		b, _ := backend.Get(name)
		infos = append(infos, BackendInfo{
			Name:      b.Name,
			Driver:    b.Driver,
			Settle:    b.Settle.String(),
			StepDelay: b.StepDelay.String(),
			Cleanup:   b.Cleanup,
		})
	}
	return infos
}
