// Package main provides the entry point for the ConvoCast CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/Jai1122/ConvoCast/internal/audio"
	"github.com/Jai1122/ConvoCast/internal/cache"
	"github.com/Jai1122/ConvoCast/internal/confluence"
	"github.com/Jai1122/ConvoCast/internal/content"
	"github.com/Jai1122/ConvoCast/internal/convert"
	"github.com/Jai1122/ConvoCast/internal/engine"
	"github.com/Jai1122/ConvoCast/internal/episode"
	"github.com/Jai1122/ConvoCast/internal/script"
	"github.com/Jai1122/ConvoCast/internal/synth"
	"github.com/Jai1122/ConvoCast/internal/voice"
	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile   string
	outputPath   string
	outDir       string
	engineName   string
	modeName     string
	formatName   string
	policyName   string
	voiceFlags   map[string]string
	gapDur       time.Duration
	workers      int
	pageID       string
	maxPages     int
	asScript     bool
	titleFlag    string
	playEpisode  bool
	noCache      bool
	cacheDirFlag string

	rootCmd = &cobra.Command{
		Use:   "convocast [SOURCE]",
		Short: "Turn a Confluence page or document into a podcast episode",
		Long: "ConvoCast converts a Confluence page, a markdown document, or a\n" +
			"pre-written dialogue script into a multi-speaker audio episode.\n" +
			"SOURCE is a file path or \"-\" for stdin; use --page to fetch from\n" +
			"Confluence instead.",
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.MaximumNArgs(1),
		RunE:             execute,
	}
)

func execute(cmd *cobra.Command, args []string) error {
	logger, closer, err := setupLog()
	if err != nil {
		return err
	}
	defer closer() //nolint:errcheck

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	mode, err := script.ParseMode(viper.GetString("mode"))
	if err != nil {
		return err
	}
	requested, err := engine.ParseKind(viper.GetString("engine"))
	if err != nil {
		return err
	}
	policy, err := synth.ParsePolicy(viper.GetString("on-failure"))
	if err != nil {
		return err
	}
	format := viper.GetString("format")
	if format != "mp3" && format != "wav" {
		return fmt.Errorf("invalid format %q (valid: mp3, wav)", format)
	}

	title, lines, err := loadScript(ctx, args, mode, logger)
	if err != nil {
		return err
	}
	if len(lines) == 0 {
		return errors.New("no dialogue lines to synthesize")
	}
	if titleFlag != "" {
		title = titleFlag
	}

	voices, err := voice.NewRegistry(voiceFlags, logger)
	if err != nil {
		return err
	}

	engCfg, err := env.ParseAs[engine.Config]()
	if err != nil {
		return fmt.Errorf("parse engine config: %w", err)
	}
	registry := engine.Default(engCfg, logger)
	chain := engine.NewChain(registry, logger)

	segCache, err := openCache(logger)
	if err != nil {
		return err
	}

	workDir, err := os.MkdirTemp("", "convocast-*")
	if err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}

	synthesizer := synth.New(synth.Config{
		Engine:         requested,
		Mode:           mode,
		Policy:         policy,
		Workers:        workers,
		PlaceholderDur: viper.GetDuration("placeholder-duration"),
		SampleRate:     engCfg.SampleRate,
		WorkDir:        workDir,
	}, voices, chain, segCache, logger)

	logger.Info("synthesizing", "lines", len(lines), "workers", workers)
	segments, failures, err := synthesizer.Run(ctx, lines)
	if err != nil {
		// Leave the work dir in place so produced segments survive for
		// inspection after an aborted or cancelled run.
		return err
	}

	outPath := outputPath
	if outPath == "" {
		outPath = episode.DefaultAudioPath(outDir, title, format)
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	parts := make([]audio.Part, len(segments))
	for i, s := range segments {
		parts[i] = audio.Part{Path: s.Path, ExtraGap: s.Pause, Temp: true}
	}

	assembler := audio.NewAssembler(audio.AssembleConfig{
		SampleRate: engCfg.SampleRate,
		Format:     format,
		Gap:        gapDur,
	}, logger)

	finalPath, total, err := assembler.Assemble(ctx, parts, outPath)
	if err != nil {
		os.RemoveAll(workDir)
		return fmt.Errorf("%v: %w", err, audio.ErrAssemblyFailed)
	}
	os.RemoveAll(workDir)

	ep := episode.Build(title, lines, segments, failures, finalPath, total)
	if err := ep.Write(synthesizer.ScriptText(lines)); err != nil {
		return err
	}

	printSummary(ep, total, len(failures))

	if playEpisode {
		return audio.NewPlayer(logger).PlayFile(ctx, finalPath)
	}
	return nil
}

// loadScript produces the dialogue lines from whichever source was given.
func loadScript(ctx context.Context, args []string, mode script.Mode, logger *log.Logger) (string, []script.DialogueLine, error) {
	if pageID != "" {
		return loadFromConfluence(ctx, mode, logger)
	}

	if len(args) == 0 {
		return "", nil, errors.New("a SOURCE argument or --page is required")
	}

	raw, name, err := readSource(args[0])
	if err != nil {
		return "", nil, err
	}
	title := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))

	if asScript || looksLikeScript(raw) {
		return title, script.ParseScript(raw), nil
	}

	converter := pickConverter(logger)
	lines, err := converter.Convert(ctx, title, raw, mode)
	if err != nil {
		return "", nil, fmt.Errorf("convert document: %w", err)
	}
	return title, lines, nil
}

func loadFromConfluence(ctx context.Context, mode script.Mode, logger *log.Logger) (string, []script.DialogueLine, error) {
	cfg, err := env.ParseAs[confluence.Config]()
	if err != nil {
		return "", nil, fmt.Errorf("parse confluence config: %w", err)
	}
	client, err := confluence.New(cfg, logger)
	if err != nil {
		return "", nil, err
	}

	pages, err := client.FetchTree(ctx, pageID, maxPages)
	if err != nil {
		return "", nil, err
	}
	logger.Debug("fetched", "pages", len(pages))

	var b strings.Builder
	for i, p := range pages {
		if i > 0 {
			b.WriteString("\n\n")
			b.WriteString(p.Title)
			b.WriteString("\n")
		}
		b.WriteString(content.ExtractHTML(p.Body))
	}

	converter := pickConverter(logger)
	lines, err := converter.Convert(ctx, pages[0].Title, b.String(), mode)
	if err != nil {
		return "", nil, fmt.Errorf("convert page: %w", err)
	}
	return pages[0].Title, lines, nil
}

// pickConverter uses the LLM converter when a key is configured and the
// deterministic Q&A converter otherwise.
func pickConverter(logger *log.Logger) convert.Converter {
	llmCfg, err := env.ParseAs[convert.LLMConfig]()
	if err == nil && llmCfg.APIKey != "" {
		if c, cerr := convert.NewLLMConverter(llmCfg, logger); cerr == nil {
			return c
		}
	}
	logger.Info("no LLM configured, using rule-based Q&A converter")
	return convert.NewQAConverter()
}

func readSource(arg string) (text, name string, err error) {
	if arg == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), "episode", nil
	}
	data, err := os.ReadFile(arg)
	if err != nil {
		return "", "", err
	}
	return string(data), arg, nil
}

// looksLikeScript detects a "NAME: text" transcript: most non-empty lines
// must be speaker-tagged.
func looksLikeScript(text string) bool {
	lines := script.ParseScript(text)
	var nonEmpty int
	for _, l := range strings.Split(text, "\n") {
		if strings.TrimSpace(l) != "" {
			nonEmpty++
		}
	}
	return nonEmpty > 0 && len(lines)*2 >= nonEmpty && len(script.Speakers(lines)) >= 1 && len(lines) > 1
}

func openCache(logger *log.Logger) (*cache.Cache, error) {
	if noCache {
		return nil, nil
	}
	dir := cacheDirFlag
	if dir == "" {
		scope := gap.NewScope(gap.User, "convocast")
		d, err := scope.CacheDir()
		if err != nil {
			logger.Warn("no cache dir available, caching disabled", "err", err)
			return nil, nil
		}
		dir = filepath.Join(d, "segments")
	}
	return cache.New(dir, viper.GetInt("cache-max-mb"), logger)
}

var (
	labelStyle = lipgloss.NewStyle().Bold(true)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

func printSummary(ep *episode.Episode, total time.Duration, failed int) {
	plain := !term.IsTerminal(int(os.Stdout.Fd()))
	field := func(label, value string) {
		if plain {
			fmt.Printf("%s: %s\n", label, value)
			return
		}
		fmt.Printf("%s %s\n", labelStyle.Render(label+":"), value)
	}

	size := "?"
	if info, err := os.Stat(ep.AudioPath); err == nil {
		size = humanize.Bytes(uint64(info.Size()))
	}

	field("Episode", ep.AudioPath)
	field("Script", ep.ScriptPath)
	field("Metadata", ep.MetadataPath)
	field("Duration", total.Round(time.Second).String())
	field("Segments", fmt.Sprintf("%d", ep.Metadata.SegmentCount))
	field("Engines", strings.Join(ep.Metadata.EnginesUsed, ", "))
	field("Size", size)
	if failed > 0 {
		msg := fmt.Sprintf("%d line(s) degraded to silent placeholders, see metadata", failed)
		if plain {
			fmt.Println("Warning: " + msg)
		} else {
			fmt.Println(warnStyle.Render("Warning: " + msg))
		}
	}
}

// setupLog builds the run logger: debug to a file when requested, otherwise
// warnings to stderr.
func setupLog() (*log.Logger, func() error, error) {
	if logFile := viper.GetString("log-file"); logFile != "" {
		f, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("error setting up log file: %w", err)
		}
		logger := log.NewWithOptions(f, log.Options{
			ReportTimestamp: true,
			Level:           log.DebugLevel,
		})
		return logger, f.Close, nil
	}

	level := log.WarnLevel
	if viper.GetBool("debug") {
		level = log.DebugLevel
	}
	logger := log.NewWithOptions(os.Stderr, log.Options{Level: level})
	return logger, func() error { return nil }, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "", "explicit episode audio path (overwrites)")
	rootCmd.Flags().StringVar(&outDir, "out-dir", ".", "output directory for generated episodes")
	rootCmd.Flags().StringVarP(&engineName, "engine", "e", "", "requested TTS engine (piper/espeak/say/gtts/mock)")
	rootCmd.Flags().StringVarP(&modeName, "mode", "m", "dialogue", "conversation mode (dialogue/qa)")
	rootCmd.Flags().StringVarP(&formatName, "format", "f", "mp3", "output format (mp3/wav)")
	rootCmd.Flags().StringVar(&policyName, "on-failure", "placeholder", "per-line failure policy (abort/placeholder)")
	rootCmd.Flags().StringToStringVar(&voiceFlags, "voice", nil, "speaker to voice profile overrides (host=piper-amy,expert=piper-ryan)")
	rootCmd.Flags().DurationVar(&gapDur, "gap", 600*time.Millisecond, "base inter-turn silence")
	rootCmd.Flags().IntVar(&workers, "workers", 1, "parallel synthesis workers")
	rootCmd.Flags().StringVar(&pageID, "page", "", "Confluence page id to fetch")
	rootCmd.Flags().IntVar(&maxPages, "max-pages", 1, "include direct child pages up to this total")
	rootCmd.Flags().BoolVar(&asScript, "script", false, "treat SOURCE as a NAME: line transcript")
	rootCmd.Flags().StringVar(&titleFlag, "title", "", "episode title (default derived from source)")
	rootCmd.Flags().BoolVar(&playEpisode, "play", false, "play the episode after assembly")
	rootCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the segment cache")
	rootCmd.Flags().StringVar(&cacheDirFlag, "cache-dir", "", "segment cache directory")
	rootCmd.PersistentFlags().Bool("debug", false, "debug logging")
	rootCmd.PersistentFlags().String("log-file", "", "write debug logs to a file")

	_ = viper.BindPFlag("engine", rootCmd.Flags().Lookup("engine"))
	_ = viper.BindPFlag("mode", rootCmd.Flags().Lookup("mode"))
	_ = viper.BindPFlag("format", rootCmd.Flags().Lookup("format"))
	_ = viper.BindPFlag("on-failure", rootCmd.Flags().Lookup("on-failure"))
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("log-file", rootCmd.PersistentFlags().Lookup("log-file"))

	viper.SetDefault("mode", "dialogue")
	viper.SetDefault("format", "mp3")
	viper.SetDefault("on-failure", "placeholder")
	viper.SetDefault("cache-max-mb", 200)
	viper.SetDefault("placeholder-duration", time.Second)

	rootCmd.AddCommand(voicesCmd, manCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "convocast")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "convocast")}, dirs...)
	}

	if c := os.Getenv("CONVOCAST_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("convocast")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("convocast")
	viper.AutomaticEnv()

	if configFile != "" {
		viper.SetConfigFile(configFile)
	}
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			fmt.Println("Could not parse configuration file:", err)
			os.Exit(1)
		}
	}
}
