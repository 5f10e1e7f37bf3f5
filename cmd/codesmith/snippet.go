package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"codesmith/internal/store"
)

var snippetLanguage string

var snippetCmd = &cobra.Command{
	Use:   "snippet",
	Short: "Manage the snippet library",
}

var snippetAddCmd = &cobra.Command{
	Use:   "add [title] [file]",
	Short: "Save a file's contents as a snippet",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[1], err)
		}
		st, err := store.Open(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer st.Close()

		sn, err := st.SaveSnippet(cmd.Context(), store.Snippet{
			Title:    args[0],
			Language: snippetLanguage,
			Body:     string(body),
		})
		if err != nil {
			return err
		}
		fmt.Printf("saved snippet %s (%s)\n", sn.ID, sn.Title)
		return nil
	},
}

var snippetListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved snippets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.Open(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer st.Close()

		snippets, err := st.ListSnippets(cmd.Context())
		if err != nil {
			return err
		}
		if len(snippets) == 0 {
			fmt.Println("no snippets saved")
			return nil
		}
		for _, sn := range snippets {
			lang := sn.Language
			if lang == "" {
				lang = "text"
			}
			fmt.Printf("%s  %-10s %s\n", sn.ID, lang, sn.Title)
		}
		return nil
	},
}

var snippetRmCmd = &cobra.Command{
	Use:   "rm [id]",
	Short: "Delete a snippet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.Open(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.DeleteSnippet(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Println("deleted", args[0])
		return nil
	},
}

func init() {
	snippetAddCmd.Flags().StringVar(&snippetLanguage, "lang", "", "snippet language tag")
	snippetCmd.AddCommand(snippetAddCmd)
	snippetCmd.AddCommand(snippetListCmd)
	snippetCmd.AddCommand(snippetRmCmd)
}
