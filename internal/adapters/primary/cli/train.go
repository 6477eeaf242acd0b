package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"iris-model-pipeline/internal/core/domain"
	"iris-model-pipeline/internal/core/services"
	"iris-model-pipeline/internal/ml/metrics"
)

func (a *app) trainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "train",
		Short: "Train a classifier, log it to MLflow and register a new model version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.train(cmd)
		},
	}
}

func (a *app) train(cmd *cobra.Command) error {
	res, err := a.trainingService().Train(cmd.Context(), a.cfg.Data.Path)
	if errors.Is(err, domain.ErrDataFileNotFound) {
		log.Errorf("Data file not found at %s. Run 'mlpipeline prepare' first.", a.cfg.Data.Path)
		return nil
	}
	if err != nil {
		return err
	}
	printTrainResult(a.out, res)
	return nil
}

func printTrainResult(w io.Writer, res *services.TrainResult) {
	fmt.Fprintf(w, "Run %s (%d train / %d test rows)\n", res.Run.ID, res.TrainRows, res.TestRows)

	table := tablewriter.NewWriter(w)
	table.SetAutoFormatHeaders(false)
	table.SetBorder(true)
	table.SetHeader([]string{"Kind", "Key", "Value"})
	for _, p := range res.Params {
		table.Append([]string{"param", p.Key, p.Value})
	}
	for _, m := range []struct {
		key   string
		value float64
	}{
		{metrics.Accuracy, res.Report.Accuracy},
		{metrics.Precision, res.Report.Precision},
		{metrics.Recall, res.Report.Recall},
		{metrics.F1Score, res.Report.F1},
	} {
		table.Append([]string{"metric", m.key, strconv.FormatFloat(m.value, 'f', 4, 64)})
	}
	table.Render()

	if res.ModelVersion != nil {
		fmt.Fprintf(w, "Registered %s version %d\n", res.ModelVersion.Name, res.ModelVersion.Version)
	}
}
