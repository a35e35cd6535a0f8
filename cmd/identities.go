package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var identitiesCmd = &cobra.Command{
	Use:     "identities",
	Aliases: []string{"ids"},
	Short:   "Manage enrolled identities",
}

var identitiesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List identities with their image and representative counts",
	Args:  cobra.NoArgs,
	RunE:  runIdentitiesList,
}

var identitiesCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create an empty identity",
	Args:  cobra.ExactArgs(1),
	RunE:  runIdentitiesCreate,
}

var identitiesDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete an identity and all of its images",
	Args:  cobra.ExactArgs(1),
	RunE:  runIdentitiesDelete,
}

func init() {
	rootCmd.AddCommand(identitiesCmd)
	identitiesCmd.AddCommand(identitiesListCmd, identitiesCreateCmd, identitiesDeleteCmd)

	identitiesListCmd.Flags().Bool("json", false, "Output as JSON")
	identitiesListCmd.Flags().Bool("rebuild", false, "Rebuild the gallery first to report representative counts")
}

func runIdentitiesList(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")
	ctx := context.Background()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if mustGetBool(cmd, "rebuild") {
		if _, err := a.svc.Rebuild(ctx); err != nil {
			return err
		}
	}

	ids, err := a.svc.Identities()
	if err != nil {
		return err
	}
	if jsonOutput {
		return outputJSON(ids)
	}
	if len(ids) == 0 {
		fmt.Printf("No identities in %s\n", a.store.Root())
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tIMAGES\tREPRESENTATIVES\tPREVIEW")
	for _, id := range ids {
		reps := "-"
		if id.InGallery {
			reps = fmt.Sprint(id.Representatives)
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", id.Name, id.Images, reps, id.Preview)
	}
	return w.Flush()
}

func runIdentitiesCreate(cmd *cobra.Command, args []string) error {
	a, err := newApp(context.Background())
	if err != nil {
		return err
	}
	defer a.Close()

	name, err := a.svc.CreateIdentity(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Created identity %s\n", name)
	return nil
}

func runIdentitiesDelete(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.svc.DeleteIdentity(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Deleted identity %s; gallery now has %d representatives\n", args[0], report.Size)
	return nil
}
