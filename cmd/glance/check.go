package main

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/teslashibe/go-glance/internal/config"
	"github.com/teslashibe/go-glance/internal/log"
	"github.com/teslashibe/go-glance/pkg/narration"
	"github.com/teslashibe/go-glance/pkg/prefs"
)

var (
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	sectionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("62")).Bold(true).Underline(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

var checkOnline bool

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate configuration and report which features are enabled",
	Long: `Loads the configuration the same way serve does and reports:
  • missing credentials (those features are skipped at runtime)
  • prompt templates and the preferences database
  • with --online, whether the LLM endpoint answers`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			fmt.Println(failStyle.Render("✗ configuration invalid:"), err)
			return err
		}

		fmt.Println(sectionStyle.Render("glance configuration"))
		fmt.Println(dimStyle.Render(fmt.Sprintf("port %s · speech %s · history %s", cfg.Port, cfg.Speech.Mode, cfg.Narration.HistoryScope)))
		fmt.Println()

		credential("LLM (city and nearby narration)", cfg.LLM.APIKey)
		credential("Photo analysis", cfg.Analysis.APIKey)
		if cfg.Speech.Mode == config.SpeechModeServer {
			credential("Server speech", cfg.Speech.APIKey)
		}

		if _, err := narration.LoadPrompts(cfg.Narration.PromptDir); err != nil {
			report(false, "Prompt templates", err.Error())
		} else {
			report(true, "Prompt templates", promptSource(cfg.Narration.PromptDir))
		}

		if store, err := prefs.Open(cfg.DBPath); err != nil {
			report(false, "Preferences database", err.Error())
		} else {
			store.Close()
			report(true, "Preferences database", cfg.DBPath)
		}

		if checkOnline && cfg.LLM.APIKey != "" {
			llm, err := newLLM(cfg, log.Discard())
			if err != nil {
				report(false, "LLM endpoint", err.Error())
				return nil
			}
			defer llm.Close()
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			if err := llm.Health(ctx); err != nil {
				report(false, "LLM endpoint", err.Error())
			} else {
				report(true, "LLM endpoint", cfg.LLM.BaseURL)
			}
		}
		return nil
	},
}

func init() {
	checkCmd.Flags().BoolVar(&checkOnline, "online", false, "Also contact the LLM endpoint")
}

func credential(name, key string) {
	if key == "" {
		fmt.Println(warnStyle.Render("! "+name), dimStyle.Render("no API key, feature disabled"))
		return
	}
	report(true, name, "configured")
}

func report(ok bool, name, detail string) {
	if ok {
		fmt.Println(okStyle.Render("✓ "+name), dimStyle.Render(detail))
		return
	}
	fmt.Println(failStyle.Render("✗ "+name), detail)
}

func promptSource(dir string) string {
	if dir == "" {
		return "built-in"
	}
	return dir
}
