package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/speaking-coach/internal/config"
	"github.com/jonathan/speaking-coach/internal/evaluation"
	"github.com/jonathan/speaking-coach/internal/llm"
	"github.com/jonathan/speaking-coach/internal/observability"
	"github.com/jonathan/speaking-coach/internal/types"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate a practice transcript",
	Long: "Runs the evaluation pipeline over a transcript file. With --model-output the " +
		"judgment is extracted from a saved model reply without calling the model.",
	RunE: runEvaluate,
}

var (
	evaluateTranscriptFile string
	evaluateSourceFile     string
	evaluateModelOutput    string
	evaluatePracticeType   string
	evaluateUnits          int
	evaluateFormat         string
	evaluateAPIKey         string
)

func init() {
	evaluateCmd.Flags().StringVarP(&evaluateTranscriptFile, "transcript", "t", "", "Path to transcript text file (required)")
	evaluateCmd.Flags().StringVarP(&evaluateSourceFile, "source", "s", "", "Path to the material the speaker was meant to cover")
	evaluateCmd.Flags().StringVarP(&evaluateModelOutput, "model-output", "m", "", "Path to a saved model reply to extract the judgment from")
	evaluateCmd.Flags().StringVar(&evaluatePracticeType, "type", "self_intro", "Practice type: interview, slideshow or self_intro")
	evaluateCmd.Flags().IntVar(&evaluateUnits, "units", 0, "Number of content units (slides) in the source")
	evaluateCmd.Flags().StringVarP(&evaluateFormat, "format", "f", "json", "Output format: json or text")
	evaluateCmd.Flags().StringVar(&evaluateAPIKey, "api-key", "", "Gemini API key (overrides GEMINI_API_KEY env var)")

	if err := evaluateCmd.MarkFlagRequired("transcript"); err != nil {
		panic(fmt.Sprintf("failed to mark transcript flag as required: %v", err))
	}

	rootCmd.AddCommand(evaluateCmd)
}

func runEvaluate(cmd *cobra.Command, _ []string) error {
	if evaluateFormat != "json" && evaluateFormat != "text" {
		return fmt.Errorf("invalid format %q: must be json or text", evaluateFormat)
	}
	practiceType, err := types.ParsePracticeType(evaluatePracticeType)
	if err != nil {
		return err
	}

	transcript, err := os.ReadFile(evaluateTranscriptFile)
	if err != nil {
		return fmt.Errorf("failed to read transcript file: %w", err)
	}
	var source []byte
	if evaluateSourceFile != "" {
		if source, err = os.ReadFile(evaluateSourceFile); err != nil {
			return fmt.Errorf("failed to read source file: %w", err)
		}
	}

	var assessment *evaluation.Assessment
	if evaluateModelOutput != "" {
		raw, err := os.ReadFile(evaluateModelOutput)
		if err != nil {
			return fmt.Errorf("failed to read model output file: %w", err)
		}
		sig := evaluation.ComputeSignals(string(transcript), string(source), evaluateUnits)
		result := evaluation.NoSpeech()
		if evaluation.IsSpeech(string(transcript)) {
			result = evaluation.Evaluate(string(raw), sig)
		}
		assessment = &evaluation.Assessment{Result: result, Signals: sig}
	} else {
		assessment, err = evaluateWithModel(cmd.Context(), practiceType, string(transcript), string(source))
		if err != nil {
			return err
		}
	}

	return writeAssessment(cmd.OutOrStdout(), assessment, evaluateFormat)
}

func evaluateWithModel(ctx context.Context, practiceType types.PracticeType, transcript, source string) (*evaluation.Assessment, error) {
	apiKey := evaluateAPIKey
	if apiKey == "" && processEnv != nil {
		apiKey = processEnv.GeminiAPIKey
	}
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable or --api-key flag is required without --model-output")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	configPath := ""
	if processEnv != nil {
		configPath = processEnv.ConfigPath
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	client, err := llm.NewGeminiClient(ctx, nil, apiKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	defer func() { _ = client.Close() }()

	analyzer := evaluation.NewAnalyzer(client.WithTier(llm.TierAdvanced), evaluation.AnalyzerOptions{
		Timeout: cfg.GenerationTimeout.Std(),
	})
	return analyzer.Analyze(ctx, evaluation.Request{
		PracticeType: practiceType,
		Transcript:   transcript,
		SourceText:   source,
		Units:        evaluateUnits,
	})
}

func writeAssessment(w io.Writer, assessment *evaluation.Assessment, format string) error {
	if format == "text" {
		observability.NewPrinter(w).PrintJudgment(&assessment.Result)
		return nil
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(assessment); err != nil {
		return fmt.Errorf("failed to encode judgment: %w", err)
	}
	return nil
}
