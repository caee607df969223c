package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"invoice-scanner-go/internal/classifier"
)

var (
	classifySubject     string
	classifyBody        string
	classifySender      string
	classifyAttachments []string
	classifyUnit        string
	classifyVIN         string
	classifyThreshold   float64
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify one message offline and print the decision",
	Long: `Runs the invoice classifier on a message given by flags. Nothing is
fetched, archived or recorded in the ledger.`,
	RunE: runClassify,
}

func init() {
	classifyCmd.Flags().StringVar(&classifySubject, "subject", "", "message subject")
	classifyCmd.Flags().StringVar(&classifyBody, "body", "", "message body text")
	classifyCmd.Flags().StringVar(&classifySender, "sender", "", "message sender")
	classifyCmd.Flags().StringSliceVar(&classifyAttachments, "attachment", nil, "attachment file name (repeatable)")
	classifyCmd.Flags().StringVar(&classifyUnit, "unit", "574", "vehicle unit number")
	classifyCmd.Flags().StringVar(&classifyVIN, "vin", "3AKJHHDR7KSKE1598", "vehicle identification number")
	classifyCmd.Flags().Float64Var(&classifyThreshold, "threshold", classifier.DefaultThreshold, "acceptance threshold")
	rootCmd.AddCommand(classifyCmd)
}

func runClassify(cmd *cobra.Command, _ []string) error {
	identity := classifier.NewIdentity(classifyUnit, classifyVIN)
	cls := classifier.New(identity, classifier.DefaultVocabulary(), classifyThreshold)

	decision := cls.Classify(classifySubject, classifyBody, classifySender, classifyAttachments)

	out, err := json.MarshalIndent(decision, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode decision: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
