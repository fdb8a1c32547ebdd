package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/murmur/internal/config"
)

// outcomeView mirrors the pipeline outcome shape served by the API.
type outcomeView struct {
	Transcript string `json:"transcript"`
	Language   string `json:"language"`
	Result     struct {
		Intent                string `json:"intent"`
		Content               string `json:"content"`
		Category              string `json:"category"`
		DueDate               string `json:"due_date"`
		IsComplete            bool   `json:"is_complete"`
		ClarificationQuestion string `json:"clarification_question"`
	} `json:"result"`
	EntryID string `json:"entry_id"`
}

func printOutcome(out outcomeView) {
	if out.Transcript != "" {
		fmt.Printf("%s %s\n", colorize(colorBold, "Heard:"), out.Transcript)
	}
	fmt.Printf("%s %s\n", colorize(colorBold, "Intent:"), out.Result.Intent)
	fmt.Printf("%s %s\n", colorize(colorBold, "Content:"), out.Result.Content)
	if out.Result.Category != "" {
		fmt.Printf("%s %s\n", colorize(colorBold, "Category:"), out.Result.Category)
	}
	if out.Result.DueDate != "" {
		fmt.Printf("%s %s\n", colorize(colorBold, "Due:"), out.Result.DueDate)
	}
	if !out.Result.IsComplete && out.Result.ClarificationQuestion != "" {
		printWarning("%s", out.Result.ClarificationQuestion)
	}
	if out.EntryID != "" {
		printSuccess("Saved note %s", out.EntryID)
	}
}

// --- capture ---

var captureCmd = &cobra.Command{
	Use:   "capture <audio-file>",
	Short: "Send an audio recording through the voice pipeline",
	Long: `Send an audio recording through the voice pipeline.

The recording is transcribed, classified as a note, reminder, or query,
and notes are persisted for later recall.

Example:
  murmur capture ./recording.webm`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading audio file: %w", err)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.postAudio(context.Background(), "/v1/voice/process", args[0], data)
		if err != nil {
			return err
		}

		var out outcomeView
		if err := decodeJSON(resp, &out); err != nil {
			return err
		}

		printOutcome(out)
		return nil
	},
}

// --- say ---

var sayCmd = &cobra.Command{
	Use:   "say <text>",
	Short: "Run a text utterance through the classification pipeline",
	Long: `Run a text utterance through the classification pipeline.

Examples:
  murmur say "the wifi password is sunflower42"
  murmur say "remind me to call mom tomorrow at 5pm"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args, " ")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(context.Background(), "/v1/agent/classify", map[string]any{"text": text})
		if err != nil {
			return err
		}

		var out outcomeView
		if err := decodeJSON(resp, &out); err != nil {
			return err
		}

		printOutcome(out)
		return nil
	},
}

// --- recall ---

var recallCmd = &cobra.Command{
	Use:   "recall <query>",
	Short: "Semantic search over stored notes",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := fmt.Sprintf("/v1/recall?q=%s&limit=%d", url.QueryEscape(query), limit)
		resp, err := client.get(context.Background(), path)
		if err != nil {
			return err
		}

		var results []struct {
			ID        string  `json:"id"`
			Content   string  `json:"content"`
			Category  string  `json:"category"`
			Score     float32 `json:"score"`
			CreatedAt string  `json:"created_at"`
		}
		if err := decodeJSON(resp, &results); err != nil {
			return err
		}

		if len(results) == 0 {
			fmt.Println("No results found.")
			return nil
		}

		for i, r := range results {
			fmt.Printf("\n%s [score: %.3f]\n", colorize(colorBold, fmt.Sprintf("Result %d", i+1)), r.Score)
			if r.Category != "" {
				fmt.Printf("  Category: %s\n", r.Category)
			}
			content := r.Content
			if len(content) > 500 {
				content = content[:500] + "..."
			}
			fmt.Printf("  %s\n", content)
		}
		return nil
	},
}

func init() {
	recallCmd.Flags().Int("limit", 5, "maximum number of results")
}

// --- context ---

var contextCmd = &cobra.Command{
	Use:   "context",
	Short: "Manage user context variables",
	Long: `Manage user context variables made available to the classifier.

Examples:
  murmur context set home_address "12 Main St" --description "where I live"
  murmur context get home_address
  murmur context list
  murmur context rm home_address`,
}

var contextSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a context variable",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		description, _ := cmd.Flags().GetString("description")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		body := map[string]string{"value": value, "description": description}
		resp, err := client.put(context.Background(), "/v1/context/"+url.PathEscape(key), body)
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var contextGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Show a context variable",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(context.Background(), "/v1/context/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		fmt.Println(result["value"])
		return nil
	},
}

var contextListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all context variables",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(context.Background(), "/v1/context")
		if err != nil {
			return err
		}

		var values map[string]string
		if err := decodeJSON(resp, &values); err != nil {
			return err
		}

		if len(values) == 0 {
			fmt.Println("No context variables set.")
			return nil
		}

		for k, v := range values {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k), v)
		}
		return nil
	},
}

var contextRmCmd = &cobra.Command{
	Use:   "rm <key>",
	Short: "Delete a context variable",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(context.Background(), "/v1/context/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Deleted %s", args[0])
		return nil
	},
}

func init() {
	contextSetCmd.Flags().String("description", "", "human-readable description of the variable")
	contextCmd.AddCommand(contextSetCmd)
	contextCmd.AddCommand(contextGetCmd)
	contextCmd.AddCommand(contextListCmd)
	contextCmd.AddCommand(contextRmCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
