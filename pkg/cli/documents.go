package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nimburion/docstream/pkg/docstore"
	"github.com/nimburion/docstream/pkg/document"
)

func (a *app) insertCommand() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "insert [document...]",
		Short: "Insert JSON documents",
		Example: `  docstream insert '{"name":"John","age":30}'
  docstream insert --file users.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var docs []document.Document
			for _, arg := range args {
				obj, err := parseObject("document", arg)
				if err != nil {
					return err
				}
				docs = append(docs, obj)
			}
			if file != "" {
				fromFile, err := readDocuments(file, cmd.InOrStdin())
				if err != nil {
					return err
				}
				docs = append(docs, fromFile...)
			}
			if len(docs) == 0 {
				return errors.New("no documents given")
			}

			return a.withSession(cmd, func(ctx context.Context, s *session) error {
				if len(docs) == 1 {
					doc, err := s.store.InsertOne(ctx, docs[0])
					if err != nil {
						return err
					}
					return a.print(cmd, doc)
				}
				res, err := s.store.InsertMany(ctx, docs)
				if err != nil {
					return err
				}
				if err := a.print(cmd, map[string]any{
					"inserted": res.InsertedIDs(),
					"failures": failuresOf(res.Failures),
				}); err != nil {
					return err
				}
				return batchError("insert", len(res.Failures), len(docs))
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", `read a JSON document or array of documents from a file ("-" for stdin)`)
	return cmd
}

func parseSort(specs []string) ([]document.SortField, error) {
	out := make([]document.SortField, 0, len(specs))
	for _, spec := range specs {
		path, dir, _ := strings.Cut(spec, ":")
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("%w: invalid sort %q", docstore.ErrValidation, spec)
		}
		out = append(out, document.SortField{Path: strings.TrimSpace(path), Direction: document.ParseDirection(dir)})
	}
	return out, nil
}

func (a *app) findCommand() *cobra.Command {
	var (
		sortSpecs  []string
		skip       int
		limit      int
		projection string
		withTotal  bool
	)
	cmd := &cobra.Command{
		Use:   "find [filter]",
		Short: "Find documents matching a JSON filter",
		Example: `  docstream find '{"age":{"$gt":25}}' --sort age:desc --limit 10
  docstream find '{"role":"admin"}' --projection '{"name":1}'`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := parseFilter(args, 0)
			if err != nil {
				return err
			}
			sortFields, err := parseSort(sortSpecs)
			if err != nil {
				return err
			}
			proj, err := parseProjection(projection)
			if err != nil {
				return err
			}
			q := document.Query{Filter: filter, Sort: sortFields, Skip: skip, Limit: limit, Projection: proj}

			return a.withSession(cmd, func(ctx context.Context, s *session) error {
				res, err := s.store.FindPage(ctx, q)
				if err != nil {
					return err
				}
				if withTotal {
					return a.print(cmd, map[string]any{
						"documents": res.Documents,
						"total":     res.Total,
						"has_more":  res.HasMore,
					})
				}
				return a.print(cmd, res.Documents)
			})
		},
	}
	cmd.Flags().StringSliceVar(&sortSpecs, "sort", nil, "sort keys as field[:asc|desc], applied in order")
	cmd.Flags().IntVar(&skip, "skip", 0, "number of matches to skip")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of documents (0 for all)")
	cmd.Flags().StringVar(&projection, "projection", "", `JSON projection, e.g. '{"name":1}'`)
	cmd.Flags().BoolVar(&withTotal, "total", false, "wrap results with the total match count")
	return cmd
}

func parseProjection(raw string) (document.Projection, error) {
	obj, err := parseObject("projection", raw)
	if err != nil || len(obj) == 0 {
		return nil, err
	}
	proj := make(document.Projection, len(obj))
	for field, v := range obj {
		switch flag := v.(type) {
		case bool:
			if flag {
				proj[field] = 1
			} else {
				proj[field] = 0
			}
		case float64:
			if flag != 0 {
				proj[field] = 1
			} else {
				proj[field] = 0
			}
		default:
			return nil, fmt.Errorf("%w: projection value for %q must be 0, 1 or a boolean", docstore.ErrValidation, field)
		}
	}
	return proj, nil
}

func (a *app) getCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get a document by _id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, func(ctx context.Context, s *session) error {
				doc, err := s.store.FindByID(ctx, args[0])
				if err != nil {
					return err
				}
				return a.print(cmd, doc)
			})
		},
	}
}

func (a *app) updateCommand() *cobra.Command {
	var many bool
	cmd := &cobra.Command{
		Use:     "update <filter> <update>",
		Short:   "Update documents matching a JSON filter",
		Example: `  docstream update '{"name":"John"}' '{"$inc":{"age":2}}'`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := parseFilter(args, 0)
			if err != nil {
				return err
			}
			u, err := parseObject("update", args[1])
			if err != nil {
				return err
			}
			return a.withSession(cmd, func(ctx context.Context, s *session) error {
				var res docstore.UpdateResult
				if many {
					res, err = s.store.UpdateMany(ctx, filter, document.Update(u))
				} else {
					res, err = s.store.UpdateOne(ctx, filter, document.Update(u))
				}
				if err != nil {
					return err
				}
				if err := a.print(cmd, map[string]any{
					"matched":  res.Matched,
					"modified": res.Modified,
					"failures": failuresOf(res.Failures),
				}); err != nil {
					return err
				}
				return batchError("update", len(res.Failures), res.Matched)
			})
		},
	}
	cmd.Flags().BoolVar(&many, "many", false, "update every match instead of the first")
	return cmd
}

func (a *app) deleteCommand() *cobra.Command {
	var many bool
	cmd := &cobra.Command{
		Use:   "delete <filter>",
		Short: "Delete documents matching a JSON filter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := parseFilter(args, 0)
			if err != nil {
				return err
			}
			return a.withSession(cmd, func(ctx context.Context, s *session) error {
				var res docstore.DeleteResult
				if many {
					res, err = s.store.DeleteMany(ctx, filter)
				} else {
					res, err = s.store.DeleteOne(ctx, filter)
				}
				if err != nil {
					return err
				}
				if err := a.print(cmd, map[string]any{
					"matched":  res.Matched,
					"deleted":  res.Deleted,
					"failures": failuresOf(res.Failures),
				}); err != nil {
					return err
				}
				return batchError("delete", len(res.Failures), res.Matched)
			})
		},
	}
	cmd.Flags().BoolVar(&many, "many", false, "delete every match instead of the first")
	return cmd
}

func (a *app) countCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "count [filter]",
		Short: "Count documents matching a JSON filter",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := parseFilter(args, 0)
			if err != nil {
				return err
			}
			return a.withSession(cmd, func(ctx context.Context, s *session) error {
				n, err := s.store.CountDocuments(ctx, filter)
				if err != nil {
					return err
				}
				return a.print(cmd, map[string]any{"count": n})
			})
		},
	}
}
