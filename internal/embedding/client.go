package embedding

import (
	"fmt"
	"os"

	"github.com/openai/openai-go"
)

// Client wraps the OpenAI client shared by the embedder and the example describer.
type Client struct {
	client *openai.Client
}

// NewClient creates an OpenAI client. It fails when OPENAI_API_KEY is not set.
func NewClient() (*Client, error) {
	if os.Getenv("OPENAI_API_KEY") == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}

	// openai-go reads OPENAI_API_KEY from the environment
	client := openai.NewClient()
	return &Client{client: &client}, nil
}

// Client returns the underlying OpenAI client (used by metadata generation).
func (c *Client) Client() *openai.Client {
	return c.client
}
