package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ruyisdk/ruyi-go/internal/cliout"
	"github.com/ruyisdk/ruyi-go/internal/entity"
	"github.com/ruyisdk/ruyi-go/internal/ruyierr"
)

var entityCmd = &cobra.Command{
	Use:   "entity",
	Short: "Inspect the metadata repository's entity graph",
}

var entityListCmd = &cobra.Command{
	Use:   "list <type>",
	Short: "List every entity of a given type",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := entity.NewStore(entitiesRoot())
		if err != nil {
			return err
		}
		entities := store.IterEntities(args[0])

		if porcelainFlag {
			refs := make([]string, 0, len(entities))
			for _, e := range entities {
				refs = append(refs, e.Ref())
			}
			return appEmit.Emit(cliout.KindEntityList, refs)
		}
		if len(entities) == 0 {
			fmt.Println("no entities of that type")
			return nil
		}
		for _, e := range entities {
			fmt.Printf("%s  %s\n", e.Ref(), e.DisplayName())
		}
		return nil
	},
}

var entityDescribeCmd = &cobra.Command{
	Use:   "describe <type:id>",
	Short: "Show one entity's fields and relations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := entity.NewStore(entitiesRoot())
		if err != nil {
			return err
		}
		e := store.GetByRef(args[0])
		if e == nil {
			return ruyierr.New("cmd/entity", ruyierr.NoSuchPackage, args[0], "no such entity", nil)
		}

		if porcelainFlag {
			return appEmit.Emit(cliout.KindEntity, map[string]any{
				"ref":    e.Ref(),
				"name":   e.DisplayName(),
				"data":   e.Data,
				"forward": e.RelatedRefs(),
				"reverse": e.ReverseRefs(),
			})
		}
		fmt.Printf("%s  %s\n", e.Ref(), e.DisplayName())
		for _, r := range e.RelatedRefs() {
			fmt.Printf("  -> %s\n", r)
		}
		for _, r := range e.ReverseRefs() {
			fmt.Printf("  <- %s\n", r)
		}
		return nil
	},
}

func init() {
	entityCmd.AddCommand(entityListCmd)
	entityCmd.AddCommand(entityDescribeCmd)
}

func entitiesRoot() string {
	return filepath.Join(appRepo.Root(), "entities")
}
