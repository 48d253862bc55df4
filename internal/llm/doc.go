// Package llm contains the provider-neutral chat types used by the agent:
// role-tagged messages, function tools and tool calls. Concrete providers
// live in sub-packages and implement Client.
package llm
