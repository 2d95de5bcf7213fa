package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rcliao/calmcompass/internal/action"
	"github.com/rcliao/calmcompass/internal/feedback"
	"github.com/rcliao/calmcompass/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Record, list, export and import helpfulness feedback",
	}

	add := &cobra.Command{
		Use:   "add",
		Short: "Record whether an action helped",
		Run:   runFeedbackAdd,
	}
	addCheckInFlags(add)
	add.Flags().String("suggested", "", "Action that was suggested")
	add.Flags().String("taken", "", "Action that was taken (required)")
	add.Flags().String("helped", "a_little", "Did it help: yes, a_little, not_really")
	add.Flags().Bool("ml-used", false, "The suggestion came from the model")
	add.Flags().Float64("confidence", 0, "Model confidence of the suggestion")
	add.MarkFlagRequired("taken")

	list := &cobra.Command{
		Use:   "list",
		Short: "List stored feedback, newest first",
		Run:   runFeedbackList,
	}
	list.Flags().String("action", "", "Filter by action taken")
	list.Flags().String("source", "", "Filter by suggestion source: model or rule_based")
	list.Flags().String("since", "", "Only feedback newer than this (e.g. 7d, 24h)")
	list.Flags().IntP("limit", "l", 20, "Max results")

	export := &cobra.Command{
		Use:   "export",
		Short: "Export stored feedback as training CSV",
		Run:   runFeedbackExport,
	}
	export.Flags().StringP("output", "o", "", "Output file (default: stdout)")

	imp := &cobra.Command{
		Use:   "import <feedback.csv>",
		Short: "Import feedback from a training CSV",
		Args:  cobra.ExactArgs(1),
		Run:   runFeedbackImport,
	}

	cmd.AddCommand(add, list, export, imp)
	RootCmd.AddCommand(cmd)
}

func runFeedbackAdd(cmd *cobra.Command, args []string) {
	suggestedStr, _ := cmd.Flags().GetString("suggested")
	takenStr, _ := cmd.Flags().GetString("taken")
	helped, _ := cmd.Flags().GetString("helped")
	mlUsed, _ := cmd.Flags().GetBool("ml-used")
	confidence, _ := cmd.Flags().GetFloat64("confidence")

	checkIn, err := checkInFromFlags(cmd)
	if err != nil {
		exitErr("feedback add", err)
	}
	taken, err := action.Parse(takenStr)
	if err != nil {
		exitErr("feedback add", err)
	}
	var suggested action.ID
	if suggestedStr != "" {
		if suggested, err = action.Parse(suggestedStr); err != nil {
			exitErr("feedback add", err)
		}
	}

	cfg := loadConfig()
	s, err := openStore(cfg)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	row := feedback.BuildRow(checkIn, suggested, taken, helped, mlUsed, confidence, checkIn.Date)
	saved, err := s.AddFeedback(cmd.Context(), row)
	if err != nil {
		exitErr("feedback add", err)
	}
	printJSON(saved)
}

func runFeedbackList(cmd *cobra.Command, args []string) {
	actionStr, _ := cmd.Flags().GetString("action")
	source, _ := cmd.Flags().GetString("source")
	since, _ := cmd.Flags().GetString("since")
	limit, _ := cmd.Flags().GetInt("limit")

	f := store.FeedbackFilter{Source: source, Limit: limit}
	if actionStr != "" {
		id, err := action.Parse(actionStr)
		if err != nil {
			exitErr("feedback list", err)
		}
		f.ActionTaken = id
	}
	if since != "" {
		t, err := parseSince(since, time.Now())
		if err != nil {
			exitErr("feedback list", err)
		}
		f.Since = t
	}

	cfg := loadConfig()
	s, err := openStore(cfg)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	recs, err := s.ListFeedback(cmd.Context(), f)
	if err != nil {
		exitErr("feedback list", err)
	}
	printJSON(recs)
}

func runFeedbackExport(cmd *cobra.Command, args []string) {
	output, _ := cmd.Flags().GetString("output")

	cfg := loadConfig()
	s, err := openStore(cfg)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	recs, err := s.ExportAll(cmd.Context())
	if err != nil {
		exitErr("export", err)
	}

	w := os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			exitErr("create output", err)
		}
		defer f.Close()
		w = f
	}
	if err := feedback.WriteCSV(w, recs); err != nil {
		exitErr("write csv", err)
	}
	if output != "" {
		fmt.Fprintf(os.Stderr, "exported %d rows to %s\n", len(recs), output)
	}
}

func runFeedbackImport(cmd *cobra.Command, args []string) {
	f, err := os.Open(args[0])
	if err != nil {
		exitErr("open csv", err)
	}
	defer f.Close()

	batch, err := feedback.ReadCSV(f)
	if err != nil {
		exitErr("parse csv", err)
	}

	cfg := loadConfig()
	s, err := openStore(cfg)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	imported, err := s.Import(cmd.Context(), batch.Records)
	if err != nil {
		exitErr("import", err)
	}

	fmt.Printf(`{"ok":true,"imported":%d,"dropped_incomplete":%d,"dropped_invalid":%d}`+"\n",
		imported, batch.DroppedIncomplete, batch.DroppedInvalid)
}
