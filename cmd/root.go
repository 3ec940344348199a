package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"rew2streammagic/internal/config"
	"rew2streammagic/internal/eq"
	"rew2streammagic/internal/logger"
	"rew2streammagic/internal/session"
	"rew2streammagic/internal/streammagic"
)

var (
	flagHost     string
	flagTimeout  time.Duration
	flagDryRun   bool
	flagLogLevel string
)

var (
	errInvalidAddress = errors.New("invalid device address")
	errNoBands        = errors.New("no equalizer bands found")
)

// rootCmd parses a REW filter export and pushes the first seven enabled bands
// to the device.
var rootCmd = &cobra.Command{
	Use:   "rew2streammagic <eq-file>",
	Short: "Apply REW equalizer settings to a StreamMagic streamer",
	Long: `rew2streammagic reads a Room EQ Wizard filter export, extracts the
first seven enabled parametric EQ bands, and applies them to a Cambridge
Audio StreamMagic streamer over its network control protocol.

Example:
  rew2streammagic living-room.txt
  rew2streammagic --host 192.168.1.40 --timeout 5s living-room.txt
  rew2streammagic --dry-run living-room.txt`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runApply,
}

// Execute runs the root command and maps any failure to exit code 1.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// NewRootCmd returns the root command (exported for testing).
func NewRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.Flags().StringVar(&flagHost, "host", "", "device address (overrides config)")
	rootCmd.Flags().DurationVar(&flagTimeout, "timeout", 0, "session wall-clock budget (overrides config)")
	rootCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "parse and print bands without contacting the device")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level (debug, info, warn, error)")
}

func runApply(cmd *cobra.Command, args []string) error {
	if err := config.Load(); err != nil {
		return err
	}
	log := logger.Get(resolvedLogLevel())

	host := flagHost
	if host == "" {
		host = config.Host()
	}
	timeout := flagTimeout
	if timeout <= 0 {
		timeout = config.Timeout()
	}

	// Address validation happens before any file or network activity so a
	// typo fails fast.
	if err := validateHost(host); err != nil {
		return err
	}

	path := args[0]
	userEQ, err := eq.ParseFile(path, log)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if len(userEQ.Bands) == 0 {
		return fmt.Errorf("%w in %s", errNoBands, path)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "First %d equalizer bands:\n", len(userEQ.Bands))
	for _, band := range userEQ.Bands {
		fmt.Fprintf(out, "Band %d: Freq=%dHz, Gain=%sdB, Q=%s\n",
			band.Index+1, band.Freq, fmtOptional(band.Gain), fmtOptional(band.Q))
	}

	if flagDryRun {
		log.Infow("dry run, skipping device session", "host", host)
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client := streammagic.NewClient(host, log)
	orch := session.New(client, config.MinAPIVersion(), log)
	outcome := orch.Apply(ctx, userEQ)

	if errors.Is(ctx.Err(), context.Canceled) {
		log.Warnw("interrupted by operator", "host", host)
	}
	if !outcome.Success {
		fmt.Fprintln(out, "Failed to apply equalizer settings.")
		return fmt.Errorf("device session failed (host %s)", host)
	}
	fmt.Fprintln(out, "Equalizer settings applied successfully.")
	return nil
}

// resolvedLogLevel prefers the flag, then config, then the package default.
func resolvedLogLevel() string {
	if flagLogLevel != "" {
		return flagLogLevel
	}
	if lvl := config.LogLevel(); lvl != "" {
		return lvl
	}
	return logger.InfoLevel
}

// fmtOptional renders a possibly-absent gain/Q value the way the band echo
// expects: "none" when the source line omitted the clause.
func fmtOptional(v *float64) string {
	if v == nil {
		return "none"
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}

// validateHost accepts IPv4/IPv6 literals (zone identifiers included) and
// plausible hostnames, with an optional port. Everything else is rejected
// before a connection is attempted.
func validateHost(host string) error {
	h := host
	if hostPart, port, err := net.SplitHostPort(host); err == nil {
		if _, perr := strconv.Atoi(port); perr != nil {
			return fmt.Errorf("%w: %q", errInvalidAddress, host)
		}
		h = hostPart
	}
	if h == "" {
		return fmt.Errorf("%w: %q", errInvalidAddress, host)
	}
	if _, err := netip.ParseAddr(h); err == nil {
		return nil
	}
	if validHostname(h) {
		return nil
	}
	return fmt.Errorf("%w: %q", errInvalidAddress, host)
}

func validHostname(h string) bool {
	for _, label := range strings.Split(h, ".") {
		if label == "" || label[0] == '-' || label[len(label)-1] == '-' {
			return false
		}
		for _, r := range label {
			switch {
			case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			default:
				return false
			}
		}
	}
	return true
}
