package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"adonel/internal/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "adonel",
	Short: "Adonel CLI - importação de relatórios de vendas e duplicatas",
	Long: `Adonel CLI envia relatórios diários das lojas para o backend Adonel,
mostra uma prévia para conferência e importa apenas os registros completos.

Fluxo de importação:
  1. Os arquivos são enviados ao backend, que devolve um registro por arquivo
  2. A prévia mostra o status de cada registro e o que falta preencher
  3. Registros podem ser corrigidos, removidos ou adicionados manualmente
  4. Com --confirm, os registros prontos são importados em um único lote

O comando serve expõe o mesmo fluxo como API HTTP para o painel web.`,
	Version: version,
	Run: func(cmd *cobra.Command, args []string) {
		log := logger.WithComponent("root")
		log.Info().
			Str("version", version).
			Msg("Adonel CLI executed")

		fmt.Println("Bem-vindo ao Adonel CLI!")
		fmt.Println("Use --help para ver os comandos disponíveis.")
	},
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Erro: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print version information")
}
