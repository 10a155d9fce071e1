package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"quill/internal/agent"
	"quill/internal/cli"
	"quill/internal/config"
	"quill/internal/llm"
	"quill/internal/llm/anthropic"
	"quill/internal/llm/openai"
	"quill/internal/logger"
	"quill/internal/mcp"
	"quill/internal/session"
	"quill/internal/tool"
	"quill/internal/tool/builtin"

	"github.com/spf13/cobra"
)

var (
	configPath  string
	provider    string
	model       string
	apiBaseURL  string
	apiKey      string
	temperature float64
	maxTokens   int
	maxTurns    int
	maxPrice    float64
	modeFlag    string
	verbose     bool
	noColor     bool
	noStream    bool
	noSave      bool

	continueLast bool
	resumeID     string

	outputFormat string

	sessionsLimit int
	sessionsAll   bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "quill",
		Short: "Quill coding assistant",
		Long:  "An agentic coding assistant for your terminal",
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Config file (default: quill.yaml search path)")
	pf.StringVar(&provider, "provider", "", "LLM provider: openai or anthropic")
	pf.StringVar(&model, "model", "", "Model to use (default: provider default)")
	pf.StringVar(&apiBaseURL, "api-base-url", "", "API base URL override")
	pf.StringVar(&apiKey, "api-key", "", "API key (overrides config and environment)")
	pf.Float64Var(&temperature, "temperature", 0, "Sampling temperature (0 = provider default)")
	pf.IntVar(&maxTokens, "max-tokens", 0, "Maximum completion tokens per round trip (0 = provider default)")
	pf.IntVar(&maxTurns, "max-turns", 0, "Maximum model round trips per prompt (0 = unlimited)")
	pf.Float64Var(&maxPrice, "max-price", 0, "Maximum session cost in USD (0 = unlimited)")
	pf.StringVar(&modeFlag, "mode", "", "Agent mode: interactive, auto-approve, or plan")
	pf.BoolVar(&verbose, "verbose", false, "Enable verbose output (debug mode)")
	pf.BoolVar(&noColor, "no-color", false, "Disable colored output")
	pf.BoolVar(&noStream, "no-stream", false, "Disable streaming responses")
	pf.BoolVar(&noSave, "no-save", false, "Do not persist the session to disk")

	chatCmd := &cobra.Command{
		Use:   "chat [prompt]",
		Short: "Chat with the agent interactively",
		Args:  cobra.ArbitraryArgs,
		RunE:  runChat,
	}
	chatCmd.Flags().BoolVar(&continueLast, "continue", false, "Resume the most recent session in this directory")
	chatCmd.Flags().StringVar(&resumeID, "resume", "", "Resume a session by id or id prefix")

	runCmd := &cobra.Command{
		Use:   "run <prompt>",
		Short: "Run a single prompt without the REPL",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runHeadless,
	}
	runCmd.Flags().StringVar(&outputFormat, "output-format", "text", "Output format: text, json, or stream-json")

	sessionsCmd := &cobra.Command{
		Use:   "sessions",
		Short: "List saved sessions",
		Args:  cobra.NoArgs,
		RunE:  runSessions,
	}
	sessionsCmd.Flags().IntVar(&sessionsLimit, "limit", 10, "Maximum sessions to list (0 = all)")
	sessionsCmd.Flags().BoolVar(&sessionsAll, "all", false, "Include sessions from other working directories")

	rootCmd.AddCommand(chatCmd, runCmd, sessionsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and layers explicit flags on top. Flags
// only override when changed, so config values survive unset flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg, err = config.LoadWithDefaults()
	}
	if err != nil {
		return nil, err
	}

	fl := cmd.Flags()
	if fl.Changed("provider") {
		cfg.Provider = provider
		if !fl.Changed("model") {
			// Re-derive the model for the new provider.
			cfg.Model = ""
		}
	}
	if fl.Changed("model") {
		cfg.Model = model
	}
	if fl.Changed("api-base-url") {
		cfg.BaseURL = apiBaseURL
	}
	if fl.Changed("api-key") {
		cfg.APIKey = apiKey
	}
	if fl.Changed("temperature") {
		cfg.Temperature = temperature
	}
	if fl.Changed("max-tokens") {
		cfg.MaxTokens = maxTokens
	}
	if fl.Changed("max-turns") {
		cfg.MaxTurns = maxTurns
	}
	if fl.Changed("max-price") {
		cfg.MaxPrice = maxPrice
	}
	if fl.Changed("mode") {
		cfg.Mode = modeFlag
	}
	if noStream {
		off := false
		cfg.Streaming = &off
	}
	if noSave {
		off := false
		cfg.Session.Enabled = &off
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// newLogger builds the diagnostic logger. It writes to stderr so chat
// rendering and headless formatter output own stdout.
func newLogger() *logger.Logger {
	level := logger.LevelError
	if verbose {
		level = logger.LevelDebug
	}
	log := logger.NewLogger(os.Stderr, level)
	if noColor {
		log.SetColorMode(false)
	}
	return log
}

func newClient(cfg *config.Config) (llm.Client, error) {
	key := cfg.ResolveAPIKey()
	if key == "" {
		envVar := "OPENAI_API_KEY"
		if cfg.Provider == "anthropic" {
			envVar = "ANTHROPIC_API_KEY"
		}
		return nil, fmt.Errorf("API key required (set QUILL_API_KEY or %s, or api_key in config)", envVar)
	}
	switch cfg.Provider {
	case "anthropic":
		return anthropic.NewClient(key, cfg.Model, cfg.BaseURL), nil
	default:
		return openai.NewClient(key, cfg.Model, cfg.BaseURL), nil
	}
}

func modelPricing(cfg *config.Config) agent.Pricing {
	p := cfg.PricingFor(cfg.Model)
	return agent.Pricing{InputPerMTok: p.InputPerMTok, OutputPerMTok: p.OutputPerMTok}
}

// setupTools registers the builtin tools with their permission classes,
// wires the task tool's sub-agent factory, connects configured MCP servers,
// and applies per-tool permission overrides from the config.
func setupTools(ctx context.Context, cfg *config.Config, client llm.Client, log *logger.Logger, workdir string) (*tool.Registry, *mcp.Manager, error) {
	registry := tool.NewRegistry()

	builtins := []struct {
		t        tool.Tool
		perm     tool.Permission
		readOnly bool
	}{
		{builtin.NewReadTool(), tool.PermissionAlways, true},
		{builtin.NewGlobTool(), tool.PermissionAlways, true},
		{builtin.NewGrepTool(), tool.PermissionAlways, true},
		{builtin.NewBashTool(workdir), tool.PermissionAsk, false},
		{builtin.NewWriteTool(), tool.PermissionAsk, false},
		{builtin.NewEditTool(), tool.PermissionAsk, false},
		{builtin.NewTodoWriteTool(builtin.NewTodoStore()), tool.PermissionAlways, true},
		{builtin.NewSubmitPlanTool(), tool.PermissionAlways, true},
		{builtin.NewEnterPlanModeTool(), tool.PermissionAlways, true},
	}
	for _, b := range builtins {
		if err := registry.RegisterWithPolicy(b.t, b.perm, b.readOnly); err != nil {
			return nil, nil, err
		}
	}

	factory := agent.NewFactory(client, registry, log, workdir, modelPricing(cfg))
	if err := registry.RegisterWithPolicy(builtin.NewTaskTool(factory, log), tool.PermissionAsk, false); err != nil {
		return nil, nil, err
	}

	var mgr *mcp.Manager
	if len(cfg.MCP.Servers) > 0 {
		mgr = mcp.NewManager(registry)
		if err := mgr.Initialize(ctx, cfg.MCP); err != nil {
			// The agent still works with whatever servers connected.
			log.Error("MCP: %v", err)
		}
		log.Debug("MCP servers connected: %v", mgr.Servers())
	}

	for name, perm := range cfg.Tools.Permissions {
		if err := registry.SetPermission(name, tool.Permission(perm)); err != nil {
			log.Error("tool permission override: %v", err)
		}
	}

	log.Debug("Registered %d tools", len(registry.List()))
	return registry, mgr, nil
}

func agentConfig(cfg *config.Config, mode agent.AgentMode, workdir string) agent.Config {
	return agent.Config{
		Mode:               mode,
		Workdir:            workdir,
		Temperature:        float32(cfg.Temperature),
		MaxTokens:          cfg.MaxTokens,
		MaxTurns:           cfg.MaxTurns,
		MaxPrice:           cfg.MaxPrice,
		Pricing:            modelPricing(cfg),
		Streaming:          cfg.StreamingEnabled(),
		ContextWindow:      cfg.Compact.ContextWindow,
		AutoCompact:        cfg.Compact.AutoEnabled(),
		CompactThreshold:   cfg.Compact.Threshold,
		CompactMinMessages: cfg.Compact.MinMessages,
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	log := newLogger()
	client, err := newClient(cfg)
	if err != nil {
		return err
	}
	workdir, _ := os.Getwd()

	ctx := context.Background()
	registry, mgr, err := setupTools(ctx, cfg, client, log, workdir)
	if err != nil {
		return err
	}
	if mgr != nil {
		defer mgr.Close()
	}

	mode, err := agent.ParseMode(cfg.Mode)
	if err != nil {
		return err
	}

	out := os.Stdout
	input := cli.NewInput(os.Stdin)
	renderer := cli.NewRenderer(out)
	renderer.SetColorMode(!noColor)
	renderer.SetShowReasoning(verbose)
	renderer.SetVerbose(verbose)

	acfg := agentConfig(cfg, mode, workdir)
	acfg.Gate = cli.NewTerminalGate(input, out)
	acfg.PlanGate = cli.NewTerminalPlanGate(input, out, renderer)
	ag := agent.New(client, registry, log, acfg)

	var store *session.Store
	var resumed *session.Document
	switch {
	case resumeID != "":
		path, err := session.FindByID(cfg.Session.Dir, cfg.Session.Prefix, resumeID)
		if err != nil {
			return err
		}
		store, resumed, err = session.Resume(path, workdir)
		if err != nil {
			return err
		}
	case continueLast:
		path, err := session.FindLatest(cfg.Session.Dir, cfg.Session.Prefix)
		if err != nil {
			return err
		}
		store, resumed, err = session.Resume(path, workdir)
		if err != nil {
			return err
		}
	case cfg.Session.PersistEnabled():
		store, err = session.NewStore(cfg.Session.Dir, cfg.Session.Prefix, workdir)
		if err != nil {
			return err
		}
	}
	if resumed != nil {
		if err := ag.RestoreHistory(resumed.Messages); err != nil {
			return err
		}
	}
	if !cfg.Session.PersistEnabled() {
		store = nil
	}

	fmt.Fprintf(out, "quill · %s/%s · mode: %s\n", cfg.Provider, cfg.Model, ag.Mode())
	if resumed != nil {
		fmt.Fprintf(out, "resumed session %s (%d messages)\n", shortID(resumed.Metadata.SessionID), len(resumed.Messages))
	}
	fmt.Fprintln(out, "Type /help for commands. Ctrl-D exits.")

	// Each turn gets its own signal scope: the first ctrl-c cancels the
	// in-flight turn, a ctrl-c at the prompt keeps its default behavior.
	saved := false
	turn := func(prompt string) {
		tctx, stop := signal.NotifyContext(ctx, os.Interrupt)
		defer stop()

		events, err := ag.Act(tctx, prompt)
		if err != nil {
			fmt.Fprintf(out, "%v\n", err)
			return
		}
		renderer.Drain(events)

		if store != nil {
			if err := store.Save(ag.History(), ag.Stats()); err != nil {
				log.Error("session save: %v", err)
			} else {
				saved = true
			}
		}
	}

	if seed := strings.TrimSpace(strings.Join(args, " ")); seed != "" {
		turn(seed)
	}

	marker := "\n> "
	if !noColor {
		marker = "\n\033[1;34m>\033[0m "
	}

	for {
		fmt.Fprint(out, marker)
		line, err := input.ReadLine(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(out)
				break
			}
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if quit := runCommand(ctx, ag, out, line); quit {
				break
			}
			continue
		}
		turn(line)
	}

	if saved {
		fmt.Fprintf(out, "session saved: %s\n", store.Path())
	}
	return nil
}

const helpText = `Commands:
  /mode [interactive|auto-approve|plan]  switch gating mode (no argument cycles)
  /compact                               summarize older history now
  /stats                                 token and cost counters
  /clear                                 reset the conversation
  /quit                                  exit

Ctrl-C interrupts the running turn. Ctrl-D exits.
`

// runCommand handles one slash command. It returns true when the REPL
// should exit.
func runCommand(ctx context.Context, ag *agent.Agent, w io.Writer, line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit", "/q":
		return true
	case "/help":
		fmt.Fprint(w, helpText)
	case "/mode":
		mode := agent.NextMode(ag.Mode())
		if len(fields) > 1 {
			m, err := agent.ParseMode(fields[1])
			if err != nil {
				fmt.Fprintf(w, "%v\n", err)
				return false
			}
			mode = m
		}
		if err := ag.SetMode(mode); err != nil {
			fmt.Fprintf(w, "%v\n", err)
			return false
		}
		fmt.Fprintf(w, "mode: %s\n", mode)
	case "/clear":
		if err := ag.Clear(); err != nil {
			fmt.Fprintf(w, "%v\n", err)
			return false
		}
		fmt.Fprintln(w, "Conversation cleared.")
	case "/compact":
		before := len(ag.History())
		if err := ag.Compact(ctx); err != nil {
			fmt.Fprintf(w, "compaction failed: %v\n", err)
			return false
		}
		fmt.Fprintf(w, "Compacted %d messages to %d.\n", before, len(ag.History()))
	case "/stats":
		printStats(w, ag.Stats())
	default:
		fmt.Fprintf(w, "Unknown command %s (try /help)\n", fields[0])
	}
	return false
}

func printStats(w io.Writer, st agent.Stats) {
	fmt.Fprintf(w, "steps: %d   tool calls: %d\n", st.Steps, st.ToolCalls)
	fmt.Fprintf(w, "tokens: %d prompt + %d completion = %d total\n",
		st.SessionPromptTokens, st.SessionCompletionTokens, st.SessionTotalTokens)
	fmt.Fprintf(w, "context: ~%d tokens\n", st.ContextTokens)
	if st.SessionCost > 0 {
		fmt.Fprintf(w, "cost: $%.4f\n", st.SessionCost)
	}
}

func runHeadless(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	formatter, err := cli.NewFormatter(outputFormat, os.Stdout)
	if err != nil {
		return err
	}

	log := newLogger()
	client, err := newClient(cfg)
	if err != nil {
		return err
	}
	workdir, _ := os.Getwd()

	ctx := context.Background()
	registry, mgr, err := setupTools(ctx, cfg, client, log, workdir)
	if err != nil {
		return err
	}
	if mgr != nil {
		defer mgr.Close()
	}

	// Headless runs have nobody to ask, so the default mode approves
	// every permitted call.
	if cfg.Mode == "" {
		cfg.Mode = string(agent.ModeAutoApprove)
	}
	mode, err := agent.ParseMode(cfg.Mode)
	if err != nil {
		return err
	}

	ag := agent.New(client, registry, log, agentConfig(cfg, mode, workdir))

	tctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	events, err := ag.Act(tctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	var turnErr error
	for ev := range events {
		formatter.OnEvent(ev)
		if ev.Type == agent.EventError {
			turnErr = ev.Err()
		}
	}
	if err := formatter.Finalize(ag.History()); err != nil {
		return err
	}

	if cfg.Session.PersistEnabled() {
		store, serr := session.NewStore(cfg.Session.Dir, cfg.Session.Prefix, workdir)
		if serr == nil {
			serr = store.Save(ag.History(), ag.Stats())
		}
		if serr != nil {
			log.Error("session save: %v", serr)
		}
	}

	return turnErr
}

func runSessions(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	workdir := ""
	if !sessionsAll {
		workdir, _ = os.Getwd()
	}

	sums, err := session.List(cfg.Session.Dir, cfg.Session.Prefix, sessionsLimit, workdir)
	if err != nil {
		return err
	}
	if len(sums) == 0 {
		fmt.Println("No saved sessions.")
		return nil
	}

	fmt.Printf("%-8s  %-16s  %5s  %s\n", "ID", "STARTED", "MSGS", "LAST PROMPT")
	for _, s := range sums {
		fmt.Printf("%-8s  %-16s  %5d  %s\n",
			shortID(s.SessionID), s.StartTime.Format("2006-01-02 15:04"), s.MessageCount, s.LastUserMessage)
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
