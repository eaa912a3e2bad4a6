package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/goclaw-lite/internal/config"
)

// onboardCmd interactively builds config.json and seeds the workspace
//, grounded on pyclaw cli.py's run_onboard prompt
// sequence and the default PROMPT.md/PERSONA.md content it writes.
func onboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "onboard",
		Short: "Initialize config and workspace",
		Run:   func(cmd *cobra.Command, args []string) {
			runOnboardCLI()
		},
	}
}

func runOnboardCLI() {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "goclaw-lite: %v\n", err)
		os.Exit(1)
	}

	in := bufio.NewReader(os.Stdin)
	workspace := config.ExpandHome(cfg.Agent.Workspace)

	if isInteractive() {
		if answer := promptText(in, fmt.Sprintf("Workspace path [%s]", workspace), ""); answer != "" {
			workspace = config.ExpandHome(answer)
			cfg.Agent.Workspace = workspace
		}

		fmt.Println("\n== GoClaw-lite setup ==")
		cfg.Provider.Type = promptChoice(in, "Provider type", nonEmptyString(cfg.Provider.Type, "openai"),
			[]string{"openai", "anthropic", "deepseek", "minimax", "custom"})
		if key := promptSecret(in, "API key (leave blank to keep current)", cfg.Provider.APIKey); key != "" {
			cfg.Provider.APIKey = key
		}
		switch cfg.Provider.Type {
		case "deepseek", "minimax", "custom":
			cfg.Provider.BaseURL = promptText(in, "Base URL", cfg.Provider.BaseURL)
		default:
			if url := promptText(in, "Base URL (optional)", cfg.Provider.BaseURL); url != "" {
				cfg.Provider.BaseURL = url
			}
		}
		cfg.Agent.Model = promptText(in, "Model", cfg.Agent.Model)

		if promptYesNo(in, "Enable Telegram adapter?", cfg.Channels.Telegram.Enabled) {
			cfg.Channels.Telegram.Enabled = true
			cfg.Channels.Telegram.Token = promptSecretOrKeep(in, "Telegram bot token", cfg.Channels.Telegram.Token)
			cfg.Channels.Telegram.AllowList = promptList(in, "Telegram allow_list (comma-separated, empty=all)")
		} else {
			cfg.Channels.Telegram.Enabled = false
		}

		if promptYesNo(in, "Enable Feishu adapter?", cfg.Channels.Feishu.Enabled) {
			cfg.Channels.Feishu.Enabled = true
			cfg.Channels.Feishu.AppID = promptText(in, "Feishu App ID", cfg.Channels.Feishu.AppID)
			cfg.Channels.Feishu.AppSecret = promptSecretOrKeep(in, "Feishu App Secret", cfg.Channels.Feishu.AppSecret)
			cfg.Channels.Feishu.VerificationToken = promptText(in, "Feishu Verification Token", cfg.Channels.Feishu.VerificationToken)
			cfg.Channels.Feishu.AllowList = promptList(in, "Feishu allow_list (comma-separated, empty=all)")
		} else {
			cfg.Channels.Feishu.Enabled = false
		}

		if promptYesNo(in, "Enable Slack adapter?", cfg.Channels.Slack.Enabled) {
			cfg.Channels.Slack.Enabled = true
			cfg.Channels.Slack.BotToken = promptSecretOrKeep(in, "Slack Bot Token", cfg.Channels.Slack.BotToken)
			cfg.Channels.Slack.SigningSecret = promptSecretOrKeep(in, "Slack Signing Secret", cfg.Channels.Slack.SigningSecret)
			cfg.Channels.Slack.AllowList = promptList(in, "Slack allow_list (comma-separated, empty=all)")
		} else {
			cfg.Channels.Slack.Enabled = false
		}

		if promptYesNo(in, "Enable WebUI adapter?", cfg.Channels.WebUI.Enabled) {
			cfg.Channels.WebUI.Enabled = true
			cfg.Gateway.Port = promptInt(in, "WebUI/gateway port", nonZeroInt(cfg.Gateway.Port, 18790))
			cfg.Channels.WebUI.AllowList = promptList(in, "WebUI allow tokens (comma-separated, empty=all)")
		} else {
			cfg.Channels.WebUI.Enabled = false
		}
	}

	seedWorkspace(workspace)

	if err := config.Save(cfgPath, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "goclaw-lite: failed to save config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Config: %s\n", cfgPath)
	fmt.Printf("Workspace: %s\n", workspace)
	fmt.Println("Next steps:")
	fmt.Println(" 1. Set PYCLAW_API_KEY in your environment (API keys are not saved to the config file)")
	fmt.Println(" 2. Set channel secrets through their environment variables as well")
	fmt.Println(" 3. Run 'goclaw-lite agent -m \"Hello\"'")
}

// isInteractive reports whether stdin is a terminal (pyclaw's
// sys.stdin.isatty() check, gating whether onboard prompts at all or just
// seeds the workspace with defaults).
func isInteractive() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// seedWorkspace creates the workspace layout and default prompt/persona
// files, matching pyclaw cli.py's run_onboard directory/file seeding.
func seedWorkspace(workspace string) {
	mkdirAll(workspace)
	mkdirAll(workspace + "/journal")
	mkdirAll(workspace + "/recipes")

	writeIfMissing(workspace+"/PROMPT.md", defaultPromptMD)
	writeIfMissing(workspace+"/PERSONA.md", defaultPersonaMD)
	writeIfMissing(workspace+"/journal/LONGTERM.md", "")
	writeIfMissing(workspace+"/PULSE.md", "")
}

func mkdirAll(path string) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "goclaw-lite: could not create %s: %v\n", path, err)
	}
}

func writeIfMissing(path, content string) {
	if _, err := os.Stat(path); err == nil {
		return
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "goclaw-lite: could not write %s: %v\n", path, err)
	}
}

const defaultPromptMD = `# GoClaw-lite Assistant

You are a focused personal assistant.

You can use tools for files, commands, and web research when helpful.

## Style
- Clear and concise
- Ask only when necessary
- Prefer concrete next actions
`

const defaultPersonaMD = `# Persona

You are calm, practical, and technical when needed.
You help with work, research, and engineering tasks.
`

func nonEmptyString(val, fallback string) string {
	if val != "" {
		return val
	}
	return fallback
}

func nonZeroInt(val, fallback int) int {
	if val != 0 {
		return val
	}
	return fallback
}

func promptText(in *bufio.Reader, label, def string) string {
	hint := ""
	if def != "" {
		hint = fmt.Sprintf(" [%s]", def)
	}
	fmt.Printf("%s%s: ", label, hint)
	line, _ := in.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		return def
	}
	return line
}

// promptSecret reads a value without local echo suppression — this CLI has
// no terminal-control dependency in its stack to toggle echo with, so
// secrets are entered in plain sight, same as any other prompt.
func promptSecret(in *bufio.Reader, label, current string) string {
	hint := ""
	if current != "" {
		hint = " [set]"
	}
	fmt.Printf("%s%s: ", label, hint)
	line, _ := in.ReadString('\n')
	return strings.TrimSpace(line)
}

func promptSecretOrKeep(in *bufio.Reader, label, current string) string {
	if v := promptSecret(in, label, current); v != "" {
		return v
	}
	return current
}

func promptYesNo(in *bufio.Reader, label string, def bool) bool {
	hint := "y/N"
	if def {
		hint = "Y/n"
	}
	fmt.Printf("%s (%s): ", label, hint)
	line, _ := in.ReadString('\n')
	val := strings.ToLower(strings.TrimSpace(line))
	if val == "" {
		return def
	}
	return val == "y" || val == "yes"
}

func promptList(in *bufio.Reader, label string) []string {
	fmt.Printf("%s: ", label)
	line, _ := in.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	parts := strings.Split(line, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func promptInt(in *bufio.Reader, label string, def int) int {
	fmt.Printf("%s [%d]: ", label, def)
	line, _ := in.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		return def
	}
	n, err := strconv.Atoi(line)
	if err != nil {
		return def
	}
	return n
}

func promptChoice(in *bufio.Reader, label, def string, options []string) string {
	fmt.Printf("%s (%s) [%s]: ", label, strings.Join(options, "/"), def)
	line, _ := in.ReadString('\n')
	val := strings.ToLower(strings.TrimSpace(line))
	if val == "" {
		return def
	}
	for _, opt := range options {
		if opt == val {
			return val
		}
	}
	return def
}
