package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/CareClaw/CareClaw/internal/config"
)

var (
	knowledgeText   string
	knowledgeFile   string
	knowledgeSource string
	knowledgeQuery  string
)

var knowledgeCmd = &cobra.Command{
	Use:   "knowledge",
	Short: "Manage the retrieval knowledge base",
}

var knowledgeAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Embed and store a knowledge chunk",
	RunE:  runKnowledgeAdd,
}

var knowledgeSearchCmd = &cobra.Command{
	Use:   "search",
	Short: "Retrieve knowledge for a query",
	RunE:  runKnowledgeSearch,
}

func init() {
	knowledgeAddCmd.Flags().StringVarP(&knowledgeText, "text", "t", "", "Chunk text to store")
	knowledgeAddCmd.Flags().StringVarP(&knowledgeFile, "file", "f", "", "File whose content to store")
	knowledgeAddCmd.Flags().StringVarP(&knowledgeSource, "source", "s", "manual", "Source label")
	knowledgeSearchCmd.Flags().StringVarP(&knowledgeQuery, "query", "q", "", "Query text")
	knowledgeCmd.AddCommand(knowledgeAddCmd)
	knowledgeCmd.AddCommand(knowledgeSearchCmd)
}

func runKnowledgeAdd(cmd *cobra.Command, args []string) error {
	content := knowledgeText
	if content == "" && knowledgeFile != "" {
		data, err := os.ReadFile(knowledgeFile)
		if err != nil {
			return err
		}
		content = string(data)
	}
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("provide --text or --file")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	rt, err := buildRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	id, err := rt.retriever.Store(context.Background(), content, knowledgeSource)
	if err != nil {
		return fmt.Errorf("store knowledge: %w", err)
	}
	fmt.Printf("%s stored chunk %s (source %s)\n", color.GreenString("✓"), id, knowledgeSource)
	return nil
}

func runKnowledgeSearch(cmd *cobra.Command, args []string) error {
	if strings.TrimSpace(knowledgeQuery) == "" {
		return fmt.Errorf("--query is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	rt, err := buildRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	result := rt.retriever.Retrieve(context.Background(), knowledgeQuery)
	if result == "" {
		fmt.Println("no relevant knowledge found")
		return nil
	}
	fmt.Println(result)
	return nil
}
