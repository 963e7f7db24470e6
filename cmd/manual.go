package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"adonel/internal/commit"
	"adonel/internal/logger"
	"adonel/internal/notify"
	"adonel/pkg/models"
)

var manualCmd = &cobra.Command{
	Use:   "manual [vendas|duplicatas]",
	Short: "Lança manualmente um dia de vendas ou títulos a receber",
	Long: `Cria um registro manual, sem arquivo de origem, e mostra a prévia.
Use quando o relatório da loja não existe ou não pôde ser lido.

Para vendas informe o faturamento e o detalhamento por forma de pagamento.
Um dia sem movimento deve ser lançado com --fechado.
Para duplicatas informe um ou mais títulos com --titulo CODIGO=VALOR.`,
	Example: `  # Vendas da Matriz em 05/03/2024
  adonel manual vendas --unit 1 --date 2024-03-05 --total 1500 --dinheiro 1000 --pix 500 --pedidos 42 --confirm

  # Loja fechada no feriado
  adonel manual vendas --unit 3 --date 2024-04-21 --fechado --confirm

  # Títulos a receber
  adonel manual duplicatas --unit 2 --date 2024-03-05 --titulo 1020=350.00 --titulo 1033=89.90 --confirm`,
	Args: cobra.ExactArgs(1),
	RunE: runManual,
}

func init() {
	rootCmd.AddCommand(manualCmd)

	manualCmd.Flags().Int("unit", 0, "Unidade (id do cadastro) [REQUIRED]")
	manualCmd.Flags().String("date", "", "Data no formato AAAA-MM-DD [REQUIRED]")
	manualCmd.Flags().String("total", "0", "Faturamento total")
	manualCmd.Flags().String("dinheiro", "0", "Recebido em dinheiro")
	manualCmd.Flags().String("pix", "0", "Recebido em PIX")
	manualCmd.Flags().String("cartao", "0", "Recebido em cartão")
	manualCmd.Flags().String("duplicata", "0", "Vendido a prazo (duplicata)")
	manualCmd.Flags().String("cheque", "0", "Recebido em cheque")
	manualCmd.Flags().Int("pedidos", 0, "Quantidade de pedidos")
	manualCmd.Flags().Int("pecas", 0, "Quantidade de peças")
	manualCmd.Flags().Bool("fechado", false, "A loja não abriu neste dia")
	manualCmd.Flags().StringArray("titulo", nil, "Título a receber: CODIGO_CLIENTE=VALOR (pode repetir)")
	manualCmd.Flags().String("xlsx", "", "Salva a prévia em um arquivo XLSX")
	manualCmd.Flags().Bool("confirm", false, "Importa o registro")
	manualCmd.Flags().Bool("skip-duplicates", false, "Não pede ao backend para validar duplicados")
	manualCmd.Flags().Duration("timeout", time.Minute, "Tempo máximo da operação")

	manualCmd.MarkFlagRequired("unit")
	manualCmd.MarkFlagRequired("date")
}

func runManual(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("manual")

	kind, err := models.ParseKind(args[0])
	if err != nil {
		return err
	}

	unitID, _ := cmd.Flags().GetInt("unit")
	date, _ := cmd.Flags().GetString("date")
	closed, _ := cmd.Flags().GetBool("fechado")
	xlsxPath, _ := cmd.Flags().GetString("xlsx")
	confirm, _ := cmd.Flags().GetBool("confirm")
	skipDuplicates, _ := cmd.Flags().GetBool("skip-duplicates")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	rec := models.Record{
		UnitID:           models.IntPtr(unitID),
		Date:             models.StringPtr(date),
		IsOperationalDay: models.BoolPtr(!closed),
	}

	if kind == models.KindSales {
		sales, err := salesFromFlags(cmd)
		if err != nil {
			return err
		}
		rec.Sales = sales
	} else {
		titles, _ := cmd.Flags().GetStringArray("titulo")
		items, err := parseTitles(titles)
		if err != nil {
			return err
		}
		rec.Items = items
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := createContext(timeout, log)
	defer cancel()

	client := buildClient(cfg, log)
	catalogue, err := buildCatalogue(ctx, cfg, client, log)
	if err != nil {
		return fmt.Errorf("failed to load unit catalogue: %w", err)
	}
	if _, ok := catalogue.ByID(unitID); !ok {
		return fmt.Errorf("unidade %d não está no cadastro (veja: adonel units)", unitID)
	}

	store := newStore(kind, cfg, client, catalogue, false)
	defer store.Close()
	notifier := newNotifier()

	if _, err := store.AddManualRecord(rec); err != nil {
		return fmt.Errorf("registro inválido: %w", err)
	}
	notifier.Notify(ctx, notify.ManualAdded(kind))

	if err := showPreview(ctx, store, cfg, xlsxPath, false, log); err != nil {
		return err
	}

	if !confirm {
		fmt.Println("\nNada foi importado. Use --confirm para importar o registro.")
		return nil
	}

	controller := newController(client, notifier)
	if _, err := controller.Commit(ctx, store, commit.Options{SkipDuplicateCheck: skipDuplicates}); err != nil {
		return handleImportError(kind, err, log)
	}
	return nil
}

func salesFromFlags(cmd *cobra.Command) (*models.SalesBreakdown, error) {
	amount := func(name string) (decimal.Decimal, error) {
		raw, _ := cmd.Flags().GetString(name)
		d, err := parseAmount(raw)
		if err != nil {
			return decimal.Zero, fmt.Errorf("--%s: %w", name, err)
		}
		return d, nil
	}

	var (
		sales models.SalesBreakdown
		err   error
	)
	if sales.TotalRevenue, err = amount("total"); err != nil {
		return nil, err
	}
	if sales.Cash, err = amount("dinheiro"); err != nil {
		return nil, err
	}
	if sales.Pix, err = amount("pix"); err != nil {
		return nil, err
	}
	if sales.Card, err = amount("cartao"); err != nil {
		return nil, err
	}
	if sales.Receivable, err = amount("duplicata"); err != nil {
		return nil, err
	}
	if sales.Check, err = amount("cheque"); err != nil {
		return nil, err
	}

	sales.TotalOrders, _ = cmd.Flags().GetInt("pedidos")
	sales.TotalItems, _ = cmd.Flags().GetInt("pecas")
	if sales.TotalOrders < 0 || sales.TotalItems < 0 {
		return nil, fmt.Errorf("--pedidos e --pecas não podem ser negativos")
	}
	return &sales, nil
}

// parseAmount accepts "1234.56" and the Brazilian "1.234,56".
func parseAmount(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "R$"))
	if s == "" {
		return decimal.Zero, nil
	}
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("valor inválido %q", raw)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("valor negativo %q", raw)
	}
	return d, nil
}

func parseTitles(titles []string) ([]models.ReceivableItem, error) {
	items := make([]models.ReceivableItem, 0, len(titles))
	for _, t := range titles {
		code, value, ok := strings.Cut(t, "=")
		code = strings.TrimSpace(code)
		if !ok || code == "" {
			return nil, fmt.Errorf("--titulo %q: use CODIGO_CLIENTE=VALOR", t)
		}
		amount, err := parseAmount(value)
		if err != nil {
			return nil, fmt.Errorf("--titulo %q: %w", t, err)
		}
		items = append(items, models.ReceivableItem{ClientCode: code, AmountReceivable: amount})
	}
	return items, nil
}
