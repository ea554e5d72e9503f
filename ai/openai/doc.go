// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package openai provides an embedding service backed by OpenAI-compatible APIs.
//
// It implements ai.Provider using the langchaingo library, which talks to the
// hosted OpenAI API as well as compatible servers such as Ollama, LocalAI or
// vLLM. Service errors are classified into the ai error taxonomy by HTTP status:
// 429 is ai.ErrRateLimited, 401 and 403 are ai.ErrConfiguration, other 4xx are
// ai.ErrInvalidInput, and everything else is ai.ErrServiceUnavailable.
//
// # Usage
//
//	config := ai.NewConfig(ai.WithAPIKey(os.Getenv("OPENAI_API_KEY")))
//
//	provider, err := openai.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vec, err := provider.Embedder().EmbedText(ctx, "sample text")
package openai
