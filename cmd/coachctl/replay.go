package main

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/echomind/coach-gateway/internal/analysis"
	"github.com/echomind/coach-gateway/internal/session"
)

type replayOptions struct {
	wpm      float64
	interval int
	lexicon  string
	seed     uint64
}

func newReplayCmd() *cobra.Command {
	opts := replayOptions{}
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "replay <transcript-file>",
		Short: "Run a transcript (one fragment per line) through the coaching engine",
		Long: "Replays a transcript without any provider. Time is simulated: each fragment\n" +
			"takes as long as it would at --wpm words per minute. Use - to read stdin.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			out := cmd.OutOrStdout()
			summary, err := replay(in, opts, func(cp session.Checkpoint) {
				if asJSON {
					return
				}
				_, _ = fmt.Fprintf(out, "%s %s\n",
					mutedStyle.Render(fmt.Sprintf("#%-2d %3d words %5.0f wpm %d fillers", cp.Index, cp.Metrics.WordCount, cp.Metrics.WPM, cp.Metrics.FillerCount)),
					renderFeedback(cp.Feedback))
			})
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, summary)
			}
			_, _ = fmt.Fprintln(out, renderSummary(summary))
			return nil
		},
	}
	cmd.Flags().Float64Var(&opts.wpm, "wpm", 130, "simulated speaking pace")
	cmd.Flags().IntVar(&opts.interval, "interval", session.DefaultCheckpointInterval, "fragments per checkpoint")
	cmd.Flags().StringVar(&opts.lexicon, "lexicon", "", "YAML lexicon file (default built-in)")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 0, "seed for feedback wording (0 = random)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print only the summary as JSON")
	return cmd
}

// replay feeds every line of r to a fresh coordinator on a simulated clock
// and returns the session summary.
func replay(r io.Reader, opts replayOptions, onCheckpoint func(session.Checkpoint)) (session.Summary, error) {
	if opts.wpm <= 0 {
		return session.Summary{}, fmt.Errorf("--wpm must be positive, got %v", opts.wpm)
	}

	lex := analysis.DefaultLexicon()
	if opts.lexicon != "" {
		var err error
		if lex, err = analysis.LoadLexicon(opts.lexicon); err != nil {
			return session.Summary{}, err
		}
	}

	chooser := analysis.RandomChooser()
	if opts.seed != 0 {
		chooser = analysis.SeededChooser(opts.seed)
	}

	now := time.Now()
	coordinatorOpts := []session.Option{
		session.WithClock(func() time.Time { return now }),
		session.WithCheckpointInterval(opts.interval),
		session.WithLexicon(analysis.NewStaticLexicon(lex)),
		session.WithPolicy(analysis.NewPolicy(chooser)),
	}
	if onCheckpoint != nil {
		coordinatorOpts = append(coordinatorOpts, session.WithCheckpointObserver(onCheckpoint))
	}
	c := session.NewCoordinator(uuid.NewString(), coordinatorOpts...)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		words := len(analysis.Tokenize(line))
		now = now.Add(time.Duration(math.Round(float64(words) / opts.wpm * float64(time.Minute))))
		c.Ingest(line)
	}
	if err := scanner.Err(); err != nil {
		return session.Summary{}, fmt.Errorf("read transcript: %w", err)
	}

	return c.End()
}
