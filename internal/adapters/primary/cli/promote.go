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
	"iris-model-pipeline/internal/datasets/iris"
)

func (a *app) promoteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "promote",
		Short: "Move the latest model version through Staging to Production and test-load it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.promote(cmd)
		},
	}
}

func (a *app) promote(cmd *cobra.Command) error {
	res, err := a.registryService().ManageLifecycle(cmd.Context())
	if errors.Is(err, domain.ErrNoModelVersions) {
		log.Warnf("No versions found for model '%s'.", a.cfg.Model.Name)
		return nil
	}
	if errors.Is(err, domain.ErrVersionSearchFailed) {
		log.WithError(err).Errorf("Error searching for versions of model '%s'.", a.cfg.Model.Name)
		return nil
	}
	if err != nil {
		return err
	}
	printLifecycle(a.out, a.cfg.Model.Name, res)
	return nil
}

func printLifecycle(w io.Writer, name string, res *services.LifecycleResult) {
	table := tablewriter.NewWriter(w)
	table.SetAutoFormatHeaders(false)
	table.SetBorder(true)
	table.SetHeader([]string{"Model", "Version", "Requested", "Observed"})
	for _, cp := range res.Checkpoints {
		table.Append([]string{name, strconv.Itoa(res.Version), string(cp.Requested), string(cp.Observed)})
	}
	table.Render()

	switch {
	case res.LoadError != nil:
		fmt.Fprintf(w, "Could not load %s: %v\n", res.ModelURI, res.LoadError)
	case res.Prediction != nil:
		fmt.Fprintf(w, "Prediction for sample input: %d (%s)\n", *res.Prediction, iris.TargetName(*res.Prediction))
	}
}
