package llm

import "context"

// openAIEmbedBatch is the most inputs the embeddings endpoint takes in
// one request. A long statute ingests several thousand segments.
const openAIEmbedBatch = 2048

// openAIProvider talks to api.openai.com. lexgraph builds one for the
// chat side (answers, mind maps) and one for the embedding side (segments
// at ingest, the query at retrieval) when the config names "openai".
//
// The embedding model output must match embedding_dim, the width of the
// vec_segments column:
//
//	text-embedding-3-small  1536
//	text-embedding-3-large  3072
type openAIProvider struct {
	base  openAICompatClient
	batch int
}

// NewOpenAI creates a provider for OpenAI.
func NewOpenAI(cfg Config) Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	return &openAIProvider{base: newOpenAICompatClient(cfg), batch: openAIEmbedBatch}
}

func (p *openAIProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	return p.base.chat(ctx, req)
}

// Embed caps each request at the endpoint's input limit, which a large
// embed_batch_size setting can exceed.
func (p *openAIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) <= p.batch {
		return p.base.embed(ctx, texts)
	}
	return EmbedBatched(ctx, &openAICompatProvider{base: p.base}, texts, p.batch, 1)
}
