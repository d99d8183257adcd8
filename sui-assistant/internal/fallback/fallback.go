// Package fallback answers chat requests without an LLM or document store,
// so the chat API stays usable in development.
package fallback

import (
	"context"
	"strings"
	"time"

	"github.com/vivon-labs/vivon/sui-assistant/internal/graph"
)

// Mode is reported in JSON responses produced here.
const Mode = "development_fallback"

// DefaultDelay is the pause between streamed words.
const DefaultDelay = 20 * time.Millisecond

const suiResponse = `I'm here to help with Sui blockchain development! 

**About Sui Blockchain:**
- Sui is a layer-1 blockchain designed for high-performance and low-latency applications
- It uses the Move programming language for smart contracts
- Features object-centric architecture with parallel execution

**Common Sui Development Topics:**
- Smart contract development with Move
- Object ownership and transfers
- Sui CLI and development tools
- DeFi protocols and NFTs
- VIVON platform integration

**Note:** This is a development fallback response. To enable full AI capabilities, please configure:
- OPENAI_API_KEY for language processing
- SUPABASE_DB_URL (or DATABASE_URL) for document retrieval
- Environment variables in ` + "`.env.local`" + `

How can I help you with Sui blockchain development today?`

const moveResponse = "**Move Programming Language on Sui:**\n\n" +
	"Move is a resource-oriented programming language designed for blockchain development:\n\n" +
	"```move\n" +
	`module hello_world::hello {
    use std::string;
    use sui::object::{Self, UID};
    use sui::transfer;
    use sui::tx_context::{Self, TxContext};

    struct HelloWorld has key, store {
        id: UID,
        text: string::String
    }

    public fun mint(ctx: &mut TxContext) {
        let object = HelloWorld {
            id: object::new(ctx),
            text: string::utf8(b"Hello World!")
        };
        transfer::public_transfer(object, tx_context::sender(ctx));
    }
}
` + "```\n\n" +
	`**Key Move Concepts:**
- Resources and ownership
- Abilities (copy, drop, store, key)
- Object-centric programming
- Safe resource management

Need help with specific Move concepts on the Sui blockchain or VIVON platform features?`

const vivonResponse = `**VIVON Platform Features:**

VIVON is a Web3 bounty and challenge platform built on the Sui blockchain:

**Core Features:**
- **Bounties:** Create and participate in development bounties
- **Challenges:** Technical challenges with rewards
- **VIVON Tokens:** Platform native tokens for rewards
- **NFTs:** Achievement and reward NFTs
- **Smart Contracts:** Automated reward distribution

**Platform Integration:**
- Sui wallet integration
- Smart contract templates
- Developer tools and SDKs
- Community governance

**Getting Started:**
1. Connect your Sui wallet
2. Browse available bounties
3. Submit solutions
4. Earn VIVON tokens and NFTs

Would you like to know more about any specific VIVON feature?`

const greetingResponse = `Hello! I'm the Sui Blockchain Assistant for the VIVON platform.

**I can help you with:**
- Sui blockchain development
- Move programming language
- Smart contract creation
- VIVON platform features
- DeFi protocols and NFTs
- Development best practices

**Current Status:** Development mode (limited functionality)
To enable full AI capabilities, configure API keys in your environment.

What would you like to know about Sui blockchain or VIVON platform?`

// Respond picks a canned answer by keyword. Checks run in order, so a
// message mentioning both Sui and Move gets the Sui overview.
func Respond(userMessage string) string {
	msg := strings.ToLower(userMessage)
	switch {
	case strings.Contains(msg, "sui") || strings.Contains(msg, "blockchain"):
		return suiResponse
	case strings.Contains(msg, "move") || strings.Contains(msg, "smart contract"):
		return moveResponse
	case strings.Contains(msg, "vivon") || strings.Contains(msg, "bounty") || strings.Contains(msg, "challenge"):
		return vivonResponse
	default:
		return greetingResponse
	}
}

// Stream writes text word by word, pausing delay between words. It stops
// early when ctx is done or write fails.
func Stream(ctx context.Context, text string, sink graph.Sink, delay time.Duration) error {
	words := strings.Split(text, " ")
	for i, word := range words {
		if i < len(words)-1 {
			word += " "
		}
		if err := sink.Write(word); err != nil {
			return err
		}
		if delay <= 0 || i == len(words)-1 {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil
}

// Assistant serves canned answers in place of the retrieval workflow.
type Assistant struct {
	service string
	delay   time.Duration
}

// NewAssistant creates a fallback assistant reporting the given service name.
func NewAssistant(service string, delay time.Duration) *Assistant {
	return &Assistant{service: service, delay: delay}
}

func (a *Assistant) Service() string { return a.service }

func (a *Assistant) Mode() string { return "development" }

// Answer replies to the latest user message. With a nil sink nothing is
// streamed and the reply is only returned.
func (a *Assistant) Answer(ctx context.Context, history []graph.Message, sink graph.Sink) (*graph.Result, error) {
	s := graph.NewState(history)
	if s.Question == "" {
		return nil, graph.ErrNoQuestion
	}

	text := Respond(s.Question)
	res := &graph.Result{
		Messages: []graph.Message{{Role: graph.RoleAssistant, Content: text}},
		Answer:   text,
	}
	if sink == nil {
		return res, nil
	}
	res.Streamed = true
	return res, Stream(ctx, text, sink, a.delay)
}
