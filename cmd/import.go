package cmd

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"adonel/internal/commit"
	"adonel/internal/logger"
	"adonel/internal/notify"
	"adonel/internal/session"
	"adonel/pkg/models"
)

var importCmd = &cobra.Command{
	Use:   "import [vendas|duplicatas] [arquivos ou pastas...]",
	Short: "Envia relatórios ao backend, mostra a prévia e importa os registros prontos",
	Long: `Envia todos os arquivos selecionados ao backend em uma única requisição.
O backend devolve um registro por arquivo, que é mostrado na prévia com o status:

  ✅ ok      - lido sem avisos
  ⚠️ aviso   - lido, mas o backend ou a detecção de unidade deixou avisos
  ❌ erro    - o arquivo não pôde ser lido pelo backend

Registros ok ou com aviso sem unidade, data ou títulos contam como pendentes:
a coluna Observações mostra "falta: ..." e eles não são importados até serem
corrigidos com --set, --unit e --date.
Sem --confirm nada é importado.

Required environment variables:
  API_URL   - URL base do backend (ex.: https://api.adonel.com.br/api)
  API_TOKEN - Token de sessão do usuário

Optional environment variables:
  UNITS_FILE, UNITS_SHEET, UNITS_FROM_API - Origem do cadastro de unidades
  GOOGLE_SHEET_URL                        - Planilha usada por --sheet
  READ_WORKERS                            - Arquivos lidos em paralelo (padrão: 8)`,
	Example: `  # Prévia de uma pasta de relatórios de vendas
  adonel import vendas ./relatorios/marco

  # Corrige a unidade do registro 2 e importa
  adonel import vendas ./relatorios/marco --set 2:unitId=3 --confirm

  # Preenche a data que faltou em todos os registros e remove o registro 0
  adonel import duplicatas cr-*.txt --date 2024-03-05 --remove 0 --confirm

  # Salva a prévia em XLSX sem importar
  adonel import vendas ./relatorios --xlsx previa.xlsx`,
	Args: cobra.MinimumNArgs(2),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringArray("set", nil, "Altera um campo: INDICE:campo=valor (pode repetir)")
	importCmd.Flags().Int("unit", 0, "Unidade para os registros sem unidade")
	importCmd.Flags().String("date", "", "Data (AAAA-MM-DD) para os registros sem data")
	importCmd.Flags().IntSlice("remove", nil, "Índices dos registros a remover")
	importCmd.Flags().String("xlsx", "", "Salva a prévia em um arquivo XLSX")
	importCmd.Flags().Bool("sheet", false, "Envia a prévia para a planilha GOOGLE_SHEET_URL")
	importCmd.Flags().Bool("confirm", false, "Importa os registros prontos")
	importCmd.Flags().Bool("no-detect", false, "Não tenta detectar a unidade pelo nome do arquivo")
	importCmd.Flags().Bool("skip-duplicates", false, "Não pede ao backend para validar duplicados")
	importCmd.Flags().Bool("partial", false, "Aceita importação parcial quando houver rejeitados")
	importCmd.Flags().Duration("timeout", 5*time.Minute, "Tempo máximo da operação")
}

func runImport(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("import")

	kind, err := models.ParseKind(args[0])
	if err != nil {
		return err
	}

	sets, _ := cmd.Flags().GetStringArray("set")
	unitID, _ := cmd.Flags().GetInt("unit")
	date, _ := cmd.Flags().GetString("date")
	removals, _ := cmd.Flags().GetIntSlice("remove")
	xlsxPath, _ := cmd.Flags().GetString("xlsx")
	toSheet, _ := cmd.Flags().GetBool("sheet")
	confirm, _ := cmd.Flags().GetBool("confirm")
	noDetect, _ := cmd.Flags().GetBool("no-detect")
	skipDuplicates, _ := cmd.Flags().GetBool("skip-duplicates")
	partial, _ := cmd.Flags().GetBool("partial")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	files, err := collectFiles(args[1:])
	if err != nil {
		return err
	}

	log.Info().
		Str("kind", string(kind)).
		Int("files", len(files)).
		Bool("confirm", confirm).
		Msg("Starting import")

	ctx, cancel := createContext(timeout, log)
	defer cancel()

	client := buildClient(cfg, log)
	catalogue, err := buildCatalogue(ctx, cfg, client, log)
	if err != nil {
		return fmt.Errorf("failed to load unit catalogue: %w", err)
	}

	store := newStore(kind, cfg, client, catalogue, !noDetect)
	defer store.Close()
	notifier := newNotifier()

	fmt.Printf("Enviando %d arquivo(s) de %s...\n", len(files), kind)
	records, err := store.ParseFiles(ctx, files)
	if err != nil {
		notifier.Notify(ctx, notify.ParseFailed(commit.UserMessage(kind, err)))
		return handleImportError(kind, err, log)
	}
	notifier.Notify(ctx, notify.ParseResult(records))

	if err := applyEdits(store, sets, unitID, date, removals, log); err != nil {
		return err
	}

	if err := showPreview(ctx, store, cfg, xlsxPath, toSheet, log); err != nil {
		return err
	}

	if !confirm {
		fmt.Println("\nNada foi importado. Use --confirm para importar os registros prontos.")
		return nil
	}

	controller := newController(client, notifier)
	outcome, err := controller.Commit(ctx, store, commit.Options{
		SkipDuplicateCheck: skipDuplicates,
		AllowPartial:       partial,
	})
	if err != nil {
		return handleImportError(kind, err, log)
	}

	log.Info().
		Int("sent", outcome.Sent).
		Int("imported", outcome.Imported).
		Int("rejected", outcome.Rejected).
		Msg("Import completed")
	return nil
}

// applyEdits runs --set, then fills --unit and --date, then removes records, highest index first.
func applyEdits(store *session.Store, sets []string, unitID int, date string, removals []int, log zerolog.Logger) error {
	for _, raw := range sets {
		index, field, value, err := parseSet(raw)
		if err != nil {
			return err
		}
		if err := store.UpdateField(index, field, value); err != nil {
			return fmt.Errorf("--set %s: %w", raw, err)
		}
	}

	if unitID > 0 || date != "" {
		for i, rec := range store.Records() {
			if rec.Invalid {
				continue
			}
			if unitID > 0 && rec.UnitID == nil {
				if err := store.UpdateField(i, session.FieldUnitID, unitID); err != nil {
					return fmt.Errorf("--unit: %w", err)
				}
			}
			if date != "" && rec.Date == nil {
				if err := store.UpdateField(i, session.FieldDate, date); err != nil {
					return fmt.Errorf("--date: %w", err)
				}
			}
		}
	}

	sort.Sort(sort.Reverse(sort.IntSlice(removals)))
	for i, index := range removals {
		if i > 0 && removals[i-1] == index {
			continue
		}
		if err := store.RemoveRecord(index); err != nil {
			return fmt.Errorf("--remove %d: %w", index, err)
		}
		log.Debug().Int("index", index).Msg("Record removed")
	}
	return nil
}

// parseSet splits "INDEX:field=value".
func parseSet(raw string) (int, session.Field, string, error) {
	target, value, ok := strings.Cut(raw, "=")
	if !ok {
		return 0, "", "", fmt.Errorf("--set %q: use INDICE:campo=valor", raw)
	}
	indexPart, name, ok := strings.Cut(target, ":")
	if !ok {
		return 0, "", "", fmt.Errorf("--set %q: use INDICE:campo=valor", raw)
	}
	index, err := strconv.Atoi(strings.TrimSpace(indexPart))
	if err != nil {
		return 0, "", "", fmt.Errorf("--set %q: índice inválido", raw)
	}
	field, err := session.ParseField(strings.TrimSpace(name))
	if err != nil {
		return 0, "", "", fmt.Errorf("--set %q: %w", raw, err)
	}
	return index, field, strings.TrimSpace(value), nil
}
