package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cogscreen-go/internal/archive"
	"cogscreen-go/internal/config"
	"cogscreen-go/internal/recording"
	"cogscreen-go/internal/speech"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRecordCmd(projectRoot *string) *cobra.Command {
	var (
		category string
		server   string
		token    string
		program  string
		device   []string
	)
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record a verbal fluency answer from the microphone and score it",
		Long: "Captures audio in fixed-length segments, uploads each one as soon as it is cut " +
			"and asks the speech backend to score the recording once every upload has settled. " +
			"Press Ctrl-C to stop early.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			log, err := loadConfig(*projectRoot)
			if err != nil {
				return err
			}
			defer log.Sync()

			cat, err := recording.ParseCategory(category)
			if err != nil {
				return err
			}
			if server == "" {
				server = config.Conf.Speech.URL
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			client := speech.New(server, token, config.Conf.Speech.Timeout)
			var uploader recording.Uploader = client
			store, err := archive.Open(ctx, config.Conf.Archive)
			if err != nil {
				return err
			}
			if store != nil {
				uploader = archive.NewUploader(log, store, client)
			}

			capturer := recording.DefaultCommandCapturer()
			if program != "" {
				capturer.Program = program
			}
			if len(device) > 0 {
				capturer.Input = device
			}

			coord := recording.NewCoordinator(log, config.Conf.Recording, nil, capturer, uploader, client)
			return runRecording(ctx, cmd, coord, cat, log)
		},
	}
	cmd.Flags().StringVar(&category, "category", string(recording.Animals), "word category: animals|vegetables")
	cmd.Flags().StringVar(&server, "server", "", "speech backend URL (defaults to speech.url)")
	cmd.Flags().StringVar(&token, "token", os.Getenv("COGSCREEN_TOKEN"), "bearer token for the speech backend")
	cmd.Flags().StringVar(&program, "encoder", "", "encoder executable (defaults to ffmpeg)")
	cmd.Flags().StringSliceVar(&device, "input", nil, "encoder input arguments, e.g. -f,pulse,-i,default")
	return cmd
}

func runRecording(ctx context.Context, cmd *cobra.Command, coord *recording.Coordinator, cat recording.Category, log *zap.Logger) error {
	// The session outlives ctx so that an interrupt still drains and scores.
	session, err := coord.Start(context.WithoutCancel(ctx), cat)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Recording %s (%s). Name as many %s as you can.\n", session.ID, session.MIMEType, cat)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for done := false; !done; {
		select {
		case <-ctx.Done():
			session.Stop()
			ctx = context.Background()
		case <-ticker.C:
			if session.State() == recording.Capturing {
				_, _ = fmt.Fprintf(out, "\r%2ds remaining", int(session.Remaining().Round(time.Second).Seconds()))
			}
		case <-session.Done():
			done = true
		}
	}
	_, _ = fmt.Fprintln(out)

	analysis, err := session.Wait(context.Background())
	if err != nil {
		return err
	}
	log.Info("Recording scored", zap.String("recording_id", session.ID), zap.Int("segments", session.Segments()))
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(analysis)
}
