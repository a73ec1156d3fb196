package cli

import (
	"errors"
	"fmt"

	"cogscreen-go/internal/models"
	"cogscreen-go/internal/repository"
	"cogscreen-go/internal/utils"

	"github.com/spf13/cobra"
)

func newUserCmd(projectRoot *string) *cobra.Command {
	user := &cobra.Command{Use: "user", Short: "Manage registered participants"}

	var (
		patientID, name, gender, password string
		birthYear                         int
		cdrSum, mmse, cdrMemory, cdrGlob  float64
	)

	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Register a participant",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !utils.IsComplexPassword(password) {
				return errors.New("password must be at least 8 characters with upper and lower case letters, a digit and a symbol")
			}
			log, err := loadConfig(*projectRoot)
			if err != nil {
				return err
			}
			closeDB, err := openDatabase(log, true)
			if err != nil {
				return err
			}
			defer closeDB()

			u := &models.User{PatientID: patientID, Name: name, Gender: gender, BirthYear: birthYear}
			flags := cmd.Flags()
			if flags.Changed("cdr-sum") {
				if _, err := utils.ValidateCDRSum(cdrSum); err != nil {
					return err
				}
				u.CDRSum = &cdrSum
			}
			if flags.Changed("mmse") {
				if _, err := utils.ValidateMMSE(mmse); err != nil {
					return err
				}
				u.MMSEScore = &mmse
			}
			if flags.Changed("cdr-memory") {
				if _, err := utils.ValidateCDRScore("CDRMEMORY", cdrMemory); err != nil {
					return err
				}
				u.CDRMemory = &cdrMemory
			}
			if flags.Changed("cdr-glob") {
				if _, err := utils.ValidateCDRScore("CDRGLOB", cdrGlob); err != nil {
					return err
				}
				u.CDRGlob = &cdrGlob
			}
			if err := repository.CreateUser(cmd.Context(), u, password); err != nil {
				return fmt.Errorf("create user: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "created %s (id %d)\n", u.PatientID, u.ID)
			return nil
		},
	}
	addCmd.Flags().StringVar(&patientID, "patient-id", "", "patient identifier used to log in")
	addCmd.Flags().StringVar(&name, "name", "", "display name")
	addCmd.Flags().StringVar(&gender, "gender", "", "gender")
	addCmd.Flags().IntVar(&birthYear, "birth-year", 0, "year of birth")
	addCmd.Flags().StringVar(&password, "password", "", "initial password")
	addCmd.Flags().Float64Var(&cdrSum, "cdr-sum", 0, "CDR sum of boxes")
	addCmd.Flags().Float64Var(&mmse, "mmse", 0, "MMSE score")
	addCmd.Flags().Float64Var(&cdrMemory, "cdr-memory", 0, "CDR memory box score")
	addCmd.Flags().Float64Var(&cdrGlob, "cdr-glob", 0, "global CDR")
	_ = addCmd.MarkFlagRequired("patient-id")
	_ = addCmd.MarkFlagRequired("password")

	deleteCmd := &cobra.Command{
		Use:   "delete <patient-id>",
		Short: "Remove a participant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := loadConfig(*projectRoot)
			if err != nil {
				return err
			}
			closeDB, err := openDatabase(log, true)
			if err != nil {
				return err
			}
			defer closeDB()

			u, err := repository.GetUserByPatientID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := repository.DeleteUser(cmd.Context(), u.ID); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", u.PatientID)
			return nil
		},
	}

	var newPassword string
	passwordCmd := &cobra.Command{
		Use:   "password <patient-id>",
		Short: "Set a participant's password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !utils.IsComplexPassword(newPassword) {
				return errors.New("password must be at least 8 characters with upper and lower case letters, a digit and a symbol")
			}
			log, err := loadConfig(*projectRoot)
			if err != nil {
				return err
			}
			closeDB, err := openDatabase(log, true)
			if err != nil {
				return err
			}
			defer closeDB()

			u, err := repository.GetUserByPatientID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return repository.UpdateUserPassword(cmd.Context(), u.ID, newPassword)
		},
	}
	passwordCmd.Flags().StringVar(&newPassword, "password", "", "new password")
	_ = passwordCmd.MarkFlagRequired("password")

	user.AddCommand(addCmd, deleteCmd, passwordCmd)
	return user
}
