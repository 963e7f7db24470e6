package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"adonel/internal/logger"
)

var unitsCmd = &cobra.Command{
	Use:   "units",
	Short: "Lista o cadastro de unidades usado na importação",
	Long: `Mostra as unidades que podem ser atribuídas aos registros.

O cadastro vem, nesta ordem de preferência, de UNITS_FILE (YAML),
UNITS_SHEET (aba da planilha GOOGLE_SHEET_URL), do backend quando
UNITS_FROM_API=true, ou da lista embutida das sete lojas.`,
	Example: `  adonel units`,
	Args:    cobra.NoArgs,
	RunE:    runUnits,
}

func init() {
	rootCmd.AddCommand(unitsCmd)

	unitsCmd.Flags().Duration("timeout", 30*time.Second, "Tempo máximo da operação")
}

func runUnits(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("units")

	timeout, _ := cmd.Flags().GetDuration("timeout")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := createContext(timeout, log)
	defer cancel()

	catalogue, err := buildCatalogue(ctx, cfg, buildClient(cfg, log), log)
	if err != nil {
		return fmt.Errorf("failed to load unit catalogue: %w", err)
	}

	units := catalogue.Units()
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "Código", "Nome").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return lipgloss.NewStyle().Bold(true).Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	for _, u := range units {
		t.Row(strconv.Itoa(u.ID), u.Code, u.Name)
	}

	fmt.Println(t.Render())
	fmt.Printf("%d unidade(s)\n", len(units))
	return nil
}
