package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"metapho/internal/config"
	"metapho/internal/imagefile"
	"metapho/internal/prompt"
	"metapho/internal/scan"
	"metapho/internal/service"
	"metapho/internal/tagindex"
)

var (
	configPathFlag string
	indexPathFlag  string
	queryTagFlag   string
	queryImageFlag string
	queryCatsFlag  bool
	queryPathsFlag bool
	showInfoFlag   bool
	svc            *service.Service
)

func cliLogger(msg string) {
	log.Printf("[metapho] %s", msg)
}

// ServiceFactory builds the service for one command run.
type ServiceFactory func(configPath string, logger func(string)) (*service.Service, error)

// ReaderFactory opens the terminal for the interactive tagger. complete
// offers tab completions. The returned func releases the terminal.
type ReaderFactory func(cmd *cobra.Command, complete func(string) []string) (prompt.LineReader, func(), error)

// NewRootCmd creates the root command for the CLI application. The factories
// let tests substitute their own service and input.
func NewRootCmd(getService ServiceFactory, newReader ReaderFactory) *cobra.Command {
	var rootCmd = &cobra.Command{
		Use:           "metapho",
		Short:         "metapho - tag images with Tags files",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			svc, err = getService(configPathFlag, cliLogger)
			if err != nil {
				return fmt.Errorf("failed to initialize service: %w", err)
			}
			return nil
		},
	}

	showCmd := &cobra.Command{
		Use:   "show [image|dir ...]",
		Short: "Show the tags of images",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadImages(args); err != nil {
				return err
			}
			for _, img := range svc.Images.Images() {
				if !img.Displayed {
					continue
				}
				cmd.Printf("%s: %s\n", displayPath(img.Filename), strings.Join(svc.Tagger.TagNames(img), ", "))
				if showInfoFlag {
					printInfo(cmd, img.Filename)
				}
			}
			return nil
		},
	}
	showCmd.Flags().BoolVar(&showInfoFlag, "info", false, "Also show image size, format and EXIF data")
	rootCmd.AddCommand(showCmd)

	tagsCmd := &cobra.Command{
		Use:   "tags [dir ...]",
		Short: "List all tags with image counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadTree(args); err != nil {
				return err
			}
			tags := svc.ListAllTags()
			if len(tags) == 0 {
				cmd.Println("No tags found.")
				return nil
			}
			for _, tag := range tags {
				cmd.Printf("%s (%d)\n", tag.Name, tag.Count)
			}
			return nil
		},
	}
	rootCmd.AddCommand(tagsCmd)

	categoriesCmd := &cobra.Command{
		Use:   "categories [dir ...]",
		Short: "List categories and their tags",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadTree(args); err != nil {
				return err
			}
			t := svc.Tagger
			for _, cat := range t.Categories.Names() {
				var names []string
				for _, tagno := range t.Categories.Tags(cat) {
					names = append(names, t.TagName(tagno))
				}
				cmd.Printf("%s: %s\n", cat, strings.Join(names, ", "))
			}
			return nil
		},
	}
	rootCmd.AddCommand(categoriesCmd)

	addCmd := &cobra.Command{
		Use:   "add [tag1,tag2,...] [image|dir ...]",
		Short: "Add tags to images",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadImages(args[1:]); err != nil {
				return err
			}
			tags := strings.Split(args[0], ",")
			for _, img := range svc.Images.Images() {
				if !img.Displayed {
					continue
				}
				if err := svc.AddTagsToImage(img.Filename, tags); err != nil {
					return err
				}
			}
			return save(cmd)
		},
	}
	rootCmd.AddCommand(addCmd)

	removeCmd := &cobra.Command{
		Use:   "remove [tag1,tag2,...] [image|dir ...]",
		Short: "Remove tags from images",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadImages(args[1:]); err != nil {
				return err
			}
			tags := strings.Split(args[0], ",")
			for _, img := range svc.Images.Images() {
				if !img.Displayed {
					continue
				}
				if err := svc.RemoveTagsFromImage(img.Filename, tags); err != nil {
					return err
				}
			}
			return save(cmd)
		},
	}
	rootCmd.AddCommand(removeCmd)

	renameTagCmd := &cobra.Command{
		Use:   "rename-tag [old] [new] [dir ...]",
		Short: "Rename a tag, merging it into [new] if that exists",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadTree(args[2:]); err != nil {
				return err
			}
			if err := svc.ReplaceTag(args[0], args[1]); err != nil {
				return err
			}
			return save(cmd)
		},
	}
	rootCmd.AddCommand(renameTagCmd)

	renameCategoryCmd := &cobra.Command{
		Use:   "rename-category [old] [new] [dir ...]",
		Short: "Rename a category",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadTree(args[2:]); err != nil {
				return err
			}
			if err := svc.Tagger.RenameCategory(args[0], args[1]); err != nil {
				return err
			}
			return save(cmd)
		},
	}
	rootCmd.AddCommand(renameCategoryCmd)

	matchCmd := &cobra.Command{
		Use:   "match [pattern] [dir ...]",
		Short: "List tags fuzzily matching a pattern",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadTree(args[1:]); err != nil {
				return err
			}
			for _, name := range svc.Tagger.MatchTags(args[0]) {
				cmd.Println(name)
			}
			return nil
		},
	}
	rootCmd.AddCommand(matchCmd)

	missingCmd := &cobra.Command{
		Use:   "missing [dir ...]",
		Short: "List tagged files that don't exist on disk",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadTree(args); err != nil {
				return err
			}
			for _, f := range svc.Missing() {
				cmd.Println(displayPath(f))
			}
			return nil
		},
	}
	rootCmd.AddCommand(missingCmd)

	notagsCmd := &cobra.Command{
		Use:   "notags [dir]",
		Short: "Report missing tagged files and images that still need tags",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			top := "."
			if len(args) > 0 {
				top = args[0]
			}
			if err := svc.LoadTags([]string{top}, true); err != nil {
				return err
			}
			return notagsReport(cmd, top)
		},
	}
	rootCmd.AddCommand(notagsCmd)

	tagCmd := &cobra.Command{
		Use:   "tag [image|dir ...]",
		Short: "Tag images interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadImages(args); err != nil {
				return err
			}
			var session *prompt.Session
			in, done, err := newReader(cmd, func(line string) []string { return session.Complete(line) })
			if err != nil {
				return err
			}
			defer done()
			session = prompt.NewSession(svc, in, cmd.OutOrStdout())
			return session.Run()
		},
	}
	rootCmd.AddCommand(tagCmd)

	indexCmd := &cobra.Command{
		Use:   "index",
		Short: "Maintain and query the tag index database",
	}
	indexBuildCmd := &cobra.Command{
		Use:   "build [dir ...]",
		Short: "Rebuild the tag index from Tags files",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadTree(args); err != nil {
				return err
			}
			ix, err := openIndex()
			if err != nil {
				return err
			}
			defer ix.Close()
			if err := svc.UpdateIndex(ix); err != nil {
				return err
			}
			cmd.Printf("Indexed %d tags from %d tag files.\n", len(svc.ListAllTags()), len(svc.Tagger.TagFiles))
			return nil
		},
	}
	indexQueryCmd := &cobra.Command{
		Use:   "query",
		Short: "Query the tag index (--tag, --image, --categories, --images, or all tags)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ix, err := openIndex()
			if err != nil {
				return err
			}
			defer ix.Close()

			switch {
			case queryTagFlag != "":
				images, err := ix.GetImages(queryTagFlag)
				if err != nil {
					return err
				}
				for _, img := range images {
					cmd.Println(img)
				}
			case queryImageFlag != "":
				imagePath, err := filepath.Abs(queryImageFlag)
				if err != nil {
					return err
				}
				tags, err := ix.GetTags(imagePath)
				if err != nil {
					return err
				}
				cmd.Println(strings.Join(tags, ", "))
			case queryCatsFlag:
				cats, err := ix.GetCategories()
				if err != nil {
					return err
				}
				for _, cat := range cats {
					cmd.Printf("%s: %s\n", cat.Name, strings.Join(cat.Tags, ", "))
				}
			case queryPathsFlag:
				paths, err := ix.GetAllImagePaths()
				if err != nil {
					return err
				}
				for _, p := range paths {
					cmd.Println(p)
				}
			default:
				tags, err := ix.GetAllTags()
				if err != nil {
					return err
				}
				for _, tag := range tags {
					cmd.Printf("%s (%d)\n", tag.Name, tag.Count)
				}
			}
			return nil
		},
	}
	indexQueryCmd.Flags().StringVar(&queryTagFlag, "tag", "", "List images with this tag")
	indexQueryCmd.Flags().StringVar(&queryImageFlag, "image", "", "List tags of this image")
	indexQueryCmd.Flags().BoolVar(&queryCatsFlag, "categories", false, "List categories and their tags")
	indexQueryCmd.Flags().BoolVar(&queryPathsFlag, "images", false, "List every tagged image")
	indexCmd.PersistentFlags().StringVar(&indexPathFlag, "index", "", "Path to tag index (default: user cache dir)")
	indexCmd.AddCommand(indexBuildCmd, indexQueryCmd)
	rootCmd.AddCommand(indexCmd)

	rootCmd.PersistentFlags().StringVar(&configPathFlag, "config", "", "Path to config file")

	return rootCmd
}

// loadImages adds the given images and directories (default ".") and reads
// the tag files covering them.
func loadImages(paths []string) error {
	if len(paths) == 0 {
		paths = []string{"."}
	}
	if _, err := svc.AddImages(paths); err != nil {
		return err
	}
	return svc.LoadTagsForImages()
}

// loadTree reads every tag file under the given directories (default ".").
func loadTree(dirs []string) error {
	if len(dirs) == 0 {
		dirs = []string{"."}
	}
	return svc.LoadTags(dirs, true)
}

func save(cmd *cobra.Command) error {
	out, err := svc.Save()
	if err != nil {
		return err
	}
	if out != "" {
		cmd.Printf("Saved %s\n", out)
	}
	return nil
}

func openIndex() (*tagindex.Index, error) {
	path := indexPathFlag
	if path == "" {
		var err error
		if path, err = tagindex.DefaultPath(); err != nil {
			return nil, err
		}
	}
	return tagindex.Open(path, cliLogger)
}

// displayPath shortens paths under the working directory.
func displayPath(p string) string {
	wd, err := os.Getwd()
	if err != nil {
		return p
	}
	rel, err := filepath.Rel(wd, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return p
	}
	return rel
}

// notagsReport prints tagged files that no longer exist, directories with
// nothing tagged, and untagged files in partly tagged directories.
func notagsReport(cmd *cobra.Command, top string) error {
	files, dirs, err := svc.Untagged(top)
	if err != nil {
		return err
	}
	sections := 0
	section := func(title string) {
		if sections > 0 {
			cmd.Println()
		}
		sections++
		cmd.Println(title)
	}

	if missing := svc.Missing(); len(missing) > 0 {
		section("Files in Tags file that don't exist on disk:")
		printGrouped(cmd, missing)
	}
	if len(dirs) > 0 {
		section("Directories that need a Tags file:")
		for _, d := range dirs {
			cmd.Printf("  %s\n", displayPath(d))
		}
	}
	if len(files) > 0 {
		section("Individual files that don't have tags:")
		printGrouped(cmd, files)
	}
	if sections == 0 {
		cmd.Println("Everything is tagged.")
	}
	return nil
}

// printInfo prints what can be read from the image file's header and EXIF.
func printInfo(cmd *cobra.Command, path string) {
	info, err := imagefile.Probe(path)
	if err != nil {
		cmd.Printf("  not readable: %v\n", err)
		return
	}
	cmd.Printf("  %dx%d %s, %d bytes, modified %s, rotation %d\n",
		info.Width, info.Height, info.Format, info.Size, info.ModTime.Format("2006-01-02 15:04"), info.Rotation)
	fields := info.EXIFData()
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		cmd.Printf("  %s: %s\n", name, fields[name])
	}
}

func printGrouped(cmd *cobra.Command, paths []string) {
	for _, g := range scan.GroupByDirectory(paths) {
		cmd.Printf("  %s:\n", displayPath(g.Dir))
		cmd.Printf("    %s\n", strings.Join(g.Names, " "))
	}
}

func main() {
	getService := func(configPath string, logger func(string)) (*service.Service, error) {
		cfg, err := config.Load(configPath, os.Environ())
		if err != nil {
			return nil, err
		}
		rules, err := scan.CompileRules(cfg)
		if err != nil {
			return nil, err
		}
		return service.NewService(rules, imagefile.Prober{}, logger), nil
	}
	newReader := func(cmd *cobra.Command, complete func(string) []string) (prompt.LineReader, func(), error) {
		l := liner.NewLiner()
		l.SetCtrlCAborts(true)
		l.SetCompleter(complete)
		return l, func() { l.Close() }, nil
	}
	rootCmd := NewRootCmd(getService, newReader)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
