package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"sheetchat/pkg/api"
	"sheetchat/pkg/config"
	"sheetchat/pkg/export"
	"sheetchat/pkg/inject"
	"sheetchat/pkg/sidebar"

	"github.com/pterm/pterm"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configFile string
	verbose    bool
	settings   config.Settings
)

var rootCmd = &cobra.Command{
	Use:   "sheetchat",
	Short: "Ask questions about the spreadsheet you are looking at",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetLevel(log.DebugLevel)
		}
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
		var err error
		settings, err = config.Load(configFile)
		return err
	},
	SilenceUsage: true,
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question about a spreadsheet",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

var checkAuthCmd = &cobra.Command{
	Use:   "check-auth",
	Short: "Check whether the service holds a usable Google token",
	RunE:  runCheckAuth,
}

var injectCmd = &cobra.Command{
	Use:   "inject",
	Short: "Add the sidebar to a saved host page",
	RunE:  runInject,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "sheetchat.toml", "Path to the config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")

	askCmd.Flags().String("url", "", "URL of the spreadsheet")
	askCmd.Flags().String("page", "", "Saved HTML of the spreadsheet page")
	askCmd.Flags().Bool("insert", false, "Write a returned table into the sheet")
	askCmd.Flags().String("export", "", "Save a returned table to this .xlsx file")

	injectCmd.Flags().String("page", "", "HTML page to inject into (required)")
	injectCmd.Flags().String("out", "", "Where to write the result (default stdout)")
	_ = injectCmd.MarkFlagRequired("page")

	rootCmd.AddCommand(askCmd, checkAuthCmd, injectCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runAsk(cmd *cobra.Command, args []string) error {
	pageURL, _ := cmd.Flags().GetString("url")
	pagePath, _ := cmd.Flags().GetString("page")
	insert, _ := cmd.Flags().GetBool("insert")
	exportPath, _ := cmd.Flags().GetString("export")

	q := sidebar.Query{Text: strings.Join(args, " "), PageURL: pageURL}
	if pagePath != "" {
		b, err := os.ReadFile(pagePath)
		if err != nil {
			return err
		}
		q.PageHTML = string(b)
	}

	controller := sidebar.NewController(
		api.NewClient(settings.ServiceURL, settings.ReadTimeout()*4),
		sidebar.NewNLPClient(settings.NLPBaseURL, settings.NLPVersion, settings.NLPTimeout()),
		sidebar.Options{Locale: settings.Locale, AutoHighlight: settings.AutoHighlight},
	)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	spinner, _ := pterm.DefaultSpinner.Start("Thinking...")
	turn, err := controller.Ask(ctx, q)
	_ = spinner.Stop()
	if turn != nil {
		printMessages(controller.TurnMessages(turn.ID))
	}
	if err != nil {
		return err
	}

	action := turn.Insert()
	if action == nil {
		return nil
	}
	if exportPath != "" {
		if err := export.WriteXLSX(exportPath, action.Rows()); err != nil {
			return fmt.Errorf("export: %w", err)
		}
		pterm.Success.Printf("Saved answer to %s\n", exportPath)
	}
	if insert {
		if _, err := action.Activate(ctx); err != nil {
			msgs := controller.TurnMessages(turn.ID)
			printMessages(msgs[len(msgs)-1:])
			return err
		}
		pterm.Success.Printf("Inserted %d rows at A1\n", len(action.Rows()))
	}
	return nil
}

func printMessages(msgs []sidebar.Message) {
	for _, m := range msgs {
		switch m.Kind {
		case sidebar.KindError:
			pterm.Error.Println(m.Text)
		case sidebar.KindTable:
			pterm.Info.Println(m.Text)
			_ = pterm.DefaultTable.WithHasHeader().WithData(m.Rows).Render()
		default:
			if m.Role == sidebar.RoleUser {
				pterm.FgCyan.Println("> " + m.Text)
				continue
			}
			pterm.Println(m.Text)
		}
	}
}

func runCheckAuth(cmd *cobra.Command, args []string) error {
	client := api.NewClient(settings.ServiceURL, settings.ReadTimeout())
	env, err := client.Send(context.Background(), api.ActionMessage{Action: api.CheckAuth})
	if err != nil {
		pterm.Error.Println("Could not reach the sheetchat service.")
		return err
	}
	var status api.AuthStatus
	if err := env.Decode(&status); err != nil {
		return err
	}
	if status.Authenticated {
		pterm.Success.Println("Authenticated with Google")
		return nil
	}
	pterm.Warning.Printf("Not authenticated: %s\n", status.Error)
	return nil
}

func runInject(cmd *cobra.Command, args []string) error {
	pagePath, _ := cmd.Flags().GetString("page")
	outPath, _ := cmd.Flags().GetString("out")

	f, err := os.Open(pagePath)
	if err != nil {
		return err
	}
	defer f.Close()

	out, injected, err := inject.Inject(f, settings.ServiceURL+"/assets")
	if err != nil {
		return err
	}
	if !injected {
		log.Info("Sidebar already present, page unchanged")
	}
	if outPath == "" {
		_, err = fmt.Fprint(cmd.OutOrStdout(), out)
		return err
	}
	return os.WriteFile(outPath, []byte(out), 0644)
}
