package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tendant/simple-story/pkg/simplestory"
	"github.com/tendant/simple-story/pkg/simplestory/config"
	"github.com/tendant/simple-story/pkg/simplestory/webhook"
)

const (
	FlagLanguage   = "lang"
	FlagDraft      = "draft"
	FlagStartsWith = "starts-with"
	FlagType       = "content-type"
	FlagPerPage    = "per-page"
	FlagMaxChars   = "max-chars"
	FlagAction     = "action"
	FlagDryRun     = "dry-run"
)

// buildFunc creates the story stack a command works on
type buildFunc func(ctx context.Context) (*config.Stack, error)

func newRootCmd(build buildFunc) *cobra.Command {
	root := &cobra.Command{
		Use:           "storyctl",
		Short:         "Resolve, inspect and invalidate CMS stories",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().String(FlagLanguage, "", "language of the requested stories")
	root.PersistentFlags().Bool(FlagDraft, false, "load draft versions")

	root.AddCommand(
		newResolveCmd(build),
		newListCmd(build),
		newTagsCmd(build),
		newExcerptCmd(build),
		newInvalidateCmd(build),
		newImportCmd(build),
	)
	return root
}

// withStack builds the stack, selects the requested language and closes the
// stack once fn returns.
func withStack(cmd *cobra.Command, build buildFunc, fn func(ctx context.Context, stack *config.Stack, loader *simplestory.Loader) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	stack, err := build(ctx)
	if err != nil {
		return fmt.Errorf("failed to build story stack: %w", err)
	}
	defer stack.Close()

	lang, _ := cmd.Flags().GetString(FlagLanguage)
	return fn(ctx, stack, stack.Loader.ForLanguage(lang))
}

func storyParams(cmd *cobra.Command) simplestory.StoryParams {
	var p simplestory.StoryParams
	if draft, _ := cmd.Flags().GetBool(FlagDraft); draft {
		p.Version = simplestory.VersionDraft
	}
	return p
}

func newResolveCmd(build buildFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve {full_slug}",
		Short: "Load a story, rewrite its links and run its resolvers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStack(cmd, build, func(ctx context.Context, _ *config.Stack, loader *simplestory.Loader) error {
				story, err := loader.GetStory(ctx, args[0], storyParams(cmd))
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), story)
			})
		},
	}
}

func newListCmd(build buildFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List stories with their public URLs",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			startsWith, _ := cmd.Flags().GetString(FlagStartsWith)
			contentType, _ := cmd.Flags().GetString(FlagType)
			perPage, _ := cmd.Flags().GetInt(FlagPerPage)
			params := simplestory.StoriesParams{
				StoryParams: storyParams(cmd),
				StartsWith:  startsWith,
				ContentType: contentType,
				PerPage:     perPage,
			}
			return withStack(cmd, build, func(ctx context.Context, _ *config.Stack, loader *simplestory.Loader) error {
				stories, err := loader.GetStories(ctx, params)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, story := range stories {
					fmt.Fprintf(out, "%s\t%v\n", story["full_slug"], story[simplestory.FieldPublicURL])
				}
				return nil
			})
		},
	}
	cmd.Flags().String(FlagStartsWith, "", "only list stories below this slug")
	cmd.Flags().String(FlagType, "", "only list stories of this content type")
	cmd.Flags().Int(FlagPerPage, 0, "page size, 0 lists every story")
	return cmd
}

func newTagsCmd(build buildFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "tags {full_slug}",
		Short: "Print the cache tags of a story",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStack(cmd, build, func(ctx context.Context, _ *config.Stack, loader *simplestory.Loader) error {
				tags, err := loader.Tags(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), strings.Join(tags, "\n"))
				return nil
			})
		},
	}
}

func newExcerptCmd(build buildFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "excerpt {full_slug}",
		Short: "Print the headlines and leading full sentences of a story",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			maxChars, _ := cmd.Flags().GetInt(FlagMaxChars)
			return withStack(cmd, build, func(ctx context.Context, _ *config.Stack, loader *simplestory.Loader) error {
				story, err := loader.GetStory(ctx, args[0], storyParams(cmd))
				if err != nil {
					return err
				}
				excerpt := simplestory.Extract(story["content"])
				out := cmd.OutOrStdout()
				for _, h := range excerpt.Headlines {
					fmt.Fprintf(out, "# %s\n", h)
				}
				fmt.Fprintln(out, simplestory.FullSentences(excerpt.Text, maxChars))
				return nil
			})
		},
	}
	cmd.Flags().Int(FlagMaxChars, simplestory.DefaultExcerptChars, "maximum excerpt length in characters")
	return cmd
}

func newInvalidateCmd(build buildFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invalidate {full_slug}",
		Short: "Invalidate the cache tags of every story below a slug",
		Long: `Invalidate the cache tags of every story below a slug, the same way a
CMS publish webhook does. With --dry-run the tags are only printed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			action, _ := cmd.Flags().GetString(FlagAction)
			dryRun, _ := cmd.Flags().GetBool(FlagDryRun)
			payload := webhook.Payload{Action: action, FullSlug: args[0]}

			return withStack(cmd, build, func(ctx context.Context, stack *config.Stack, _ *simplestory.Loader) error {
				inv := stack.Webhook
				if dryRun {
					inv = webhook.New(stack.Source, simplestory.NewNoopInvalidator())
				}
				tags, err := inv.InvalidatePayload(ctx, payload)
				fmt.Fprintln(cmd.OutOrStdout(), strings.Join(tags, "\n"))
				return err
			})
		},
	}
	cmd.Flags().String(FlagAction, "published", "webhook action reported in logs")
	cmd.Flags().Bool(FlagDryRun, false, "print the tags without invalidating them")
	return cmd
}

func newImportCmd(build buildFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "import {file.json|-}",
		Short: "Store stories from a JSON array into the configured source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stories, err := readStories(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			return withStack(cmd, build, func(ctx context.Context, stack *config.Stack, _ *simplestory.Loader) error {
				writer, ok := stack.Source.(simplestory.StoryWriter)
				if !ok {
					return errors.New("configured story source is read-only")
				}
				for _, story := range stories {
					if err := writer.Put(ctx, story); err != nil {
						return err
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d stories\n", len(stories))
				return nil
			})
		},
	}
}

func readStories(stdin io.Reader, name string) ([]simplestory.Node, error) {
	r := stdin
	if name != "-" {
		f, err := os.Open(name)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	var stories []simplestory.Node
	if err := json.NewDecoder(r).Decode(&stories); err != nil {
		return nil, fmt.Errorf("decode stories: %w", err)
	}
	return stories, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
