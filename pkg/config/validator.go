package config

import (
	"fmt"
	"net/url"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	if c.LLM.BaseURL == "" {
		errors = append(errors, ValidationError{
			Field:   "llm.base_url",
			Message: "LLM base URL is required",
		})
	} else if _, err := url.Parse(c.LLM.BaseURL); err != nil {
		errors = append(errors, ValidationError{
			Field:   "llm.base_url",
			Message: "invalid LLM base URL",
		})
	}

	if c.LLM.MaxTokens < 1 || c.LLM.MaxTokens > 4096 {
		errors = append(errors, ValidationError{
			Field:   "llm.max_tokens",
			Message: "max_tokens must be between 1 and 4096",
		})
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "llm.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	if c.Database.URL != "" {
		if _, err := url.Parse(c.Database.URL); err != nil {
			errors = append(errors, ValidationError{
				Field:   "database.url",
				Message: "invalid database URL",
			})
		}
	}

	if c.Database.VectorDim < 1 {
		errors = append(errors, ValidationError{
			Field:   "database.vector_dim",
			Message: "vector_dim must be positive",
		})
	}

	if c.Retrieval.TopK < 1 {
		errors = append(errors, ValidationError{
			Field:   "retrieval.top_k",
			Message: "top_k must be positive",
		})
	}

	if c.Retrieval.RerankLimit < 1 || c.Retrieval.RerankLimit > c.Retrieval.TopK*2 {
		errors = append(errors, ValidationError{
			Field:   "retrieval.rerank_limit",
			Message: "rerank_limit must be positive and no more than twice top_k",
		})
	}

	if c.Retrieval.SemanticWeight < 0 || c.Retrieval.KeywordWeight < 0 {
		errors = append(errors, ValidationError{
			Field:   "retrieval.semantic_weight",
			Message: "fusion weights must be non-negative",
		})
	}

	if c.Retrieval.MinRelevance < 0 || c.Retrieval.MinRelevance > 1 {
		errors = append(errors, ValidationError{
			Field:   "retrieval.min_relevance",
			Message: "min_relevance must be between 0 and 1",
		})
	}

	if c.Retrieval.ConfidenceMedium >= c.Retrieval.ConfidenceHigh {
		errors = append(errors, ValidationError{
			Field:   "retrieval.confidence_medium",
			Message: "confidence_medium must be below confidence_high",
		})
	}

	if c.Cache.SemanticThreshold < 0 || c.Cache.SemanticThreshold > 1 {
		errors = append(errors, ValidationError{
			Field:   "cache.semantic_threshold",
			Message: "semantic_threshold must be between 0 and 1",
		})
	}

	if c.Cache.SemanticCapacity < 1 {
		errors = append(errors, ValidationError{
			Field:   "cache.semantic_capacity",
			Message: "semantic_capacity must be positive",
		})
	}

	if c.Verify.ReviewThreshold >= c.Verify.ApproveThreshold {
		errors = append(errors, ValidationError{
			Field:   "verify.review_threshold",
			Message: "review_threshold must be below approve_threshold",
		})
	}

	if c.Pipeline.BatchConcurrency < 1 || c.Pipeline.BatchConcurrency > 9 {
		errors = append(errors, ValidationError{
			Field:   "pipeline.batch_concurrency",
			Message: "batch_concurrency must be between 1 and 9",
		})
	}

	return errors
}
