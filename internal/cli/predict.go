package cli

import (
	"encoding/json"
	"fmt"

	"cogscreen-go/internal/config"
	"cogscreen-go/internal/prediction"

	"github.com/spf13/cobra"
)

func newPredictCmd(projectRoot *string) *cobra.Command {
	var (
		owner                   string
		cdrSum, cdrMem, cdrGlob float64
		mmse                    float64
		showPayload             bool
	)
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Score the stored results of a participant with the prediction service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			log, err := loadConfig(*projectRoot)
			if err != nil {
				return err
			}
			defer log.Sync()

			store, err := openStore(cmd.Context(), log)
			if err != nil {
				return err
			}
			defer store.Close()

			var scores prediction.Scores
			flags := cmd.Flags()
			if flags.Changed("cdr-sum") {
				scores.CDRSum = &cdrSum
			}
			if flags.Changed("cdr-memory") {
				scores.CDRMemory = &cdrMem
			}
			if flags.Changed("cdr-glob") {
				scores.CDRGlob = &cdrGlob
			}
			if flags.Changed("mmse") {
				scores.MMSE = &mmse
			}

			payload, err := prediction.Collect(cmd.Context(), store, owner, scores, prediction.Scores{})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if showPayload {
				raw, _ := json.MarshalIndent(payload, "", "  ")
				_, _ = fmt.Fprintln(out, string(raw))
			}

			client := prediction.NewClient(config.Conf.Prediction.URL, config.Conf.Prediction.Timeout)
			result, err := client.Predict(cmd.Context(), payload)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(out, "%s (probability %s)\n", result.Message(), result.Percentage())
			return nil
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "results owner, e.g. user:12 or guest:<uuid>")
	cmd.Flags().Float64Var(&cdrSum, "cdr-sum", 0, "CDR sum of boxes")
	cmd.Flags().Float64Var(&cdrMem, "cdr-memory", 0, "CDR memory box score")
	cmd.Flags().Float64Var(&cdrGlob, "cdr-glob", 0, "global CDR")
	cmd.Flags().Float64Var(&mmse, "mmse", 0, "MMSE score")
	cmd.Flags().BoolVar(&showPayload, "show-payload", false, "print the model input")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}
