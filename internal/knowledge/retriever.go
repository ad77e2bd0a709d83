package knowledge

import (
	"context"
	"sort"
	"strings"
)

// Snippet is one retrieved knowledge fragment, ordered by relevance.
type Snippet struct {
	Text           string
	Source         string
	RelevanceScore float64
}

// Retriever is the external knowledge retrieval boundary. Each call returns
// a finite, ordered result set.
type Retriever interface {
	Retrieve(ctx context.Context, query string, filters map[string]string, topK int) ([]Snippet, error)
}

// Document is a corpus entry for the in-memory retriever.
type Document struct {
	Text     string
	Source   string
	Category string
}

// memoryRetriever scores documents by query term overlap. It backs
// development and tests; a vector store sits behind the same interface in
// production deployments.
type memoryRetriever struct {
	docs []Document
}

// NewMemoryRetriever builds a retriever over the given corpus. A nil corpus
// gets the built-in runbook seeds.
func NewMemoryRetriever(docs []Document) Retriever {
	if docs == nil {
		docs = seedDocuments
	}
	return &memoryRetriever{docs: docs}
}

func (r *memoryRetriever) Retrieve(ctx context.Context, query string, filters map[string]string, topK int) ([]Snippet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = 5
	}

	queryTerms := termSet(query)
	category := filters["category"]

	var results []Snippet
	for _, doc := range r.docs {
		if category != "" && doc.Category != category {
			continue
		}
		score := overlapScore(queryTerms, doc.Text)
		if score <= 0 {
			continue
		}
		results = append(results, Snippet{Text: doc.Text, Source: doc.Source, RelevanceScore: score})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].RelevanceScore > results[j].RelevanceScore
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func termSet(text string) map[string]bool {
	terms := make(map[string]bool)
	for _, term := range strings.Fields(strings.ToLower(text)) {
		if len(term) > 2 {
			terms[term] = true
		}
	}
	return terms
}

func overlapScore(queryTerms map[string]bool, docText string) float64 {
	if len(queryTerms) == 0 {
		return 0
	}
	docTerms := termSet(docText)
	matched := 0
	for term := range queryTerms {
		if docTerms[term] {
			matched++
		}
	}
	return float64(matched) / float64(len(queryTerms))
}

var seedDocuments = []Document{
	{
		Source:   "runbook/vpn-connectivity",
		Category: "network",
		Text:     "VPN connection timeouts are usually stale client configuration. Push the current VPN config profile to the device, then have the user reconnect.",
	},
	{
		Source:   "runbook/account-lockout",
		Category: "access",
		Text:     "Repeated failed logins lock the account after five attempts. Unlock the account and advise the user to reset their password if they cannot remember it.",
	},
	{
		Source:   "runbook/password-reset",
		Category: "access",
		Text:     "Password resets require identity verification before any change. Issue a temporary password that must be changed on first login.",
	},
	{
		Source:   "runbook/software-install",
		Category: "software",
		Text:     "Only software from the approved catalog (office365, zoom, slack, chrome, vscode) may be installed. Other requests go to procurement.",
	},
	{
		Source:   "runbook/application-crash",
		Category: "software",
		Text:     "For recurring application crashes run a repair install first. Collect diagnostics if the crash persists after repair.",
	},
	{
		Source:   "runbook/hardware-diagnostics",
		Category: "hardware",
		Text:     "Run the device diagnostic suite before replacing hardware. CPU, memory, disk, and network checks identify most faults.",
	},
	{
		Source:   "runbook/mailbox-issues",
		Category: "email",
		Text:     "Mailbox sync problems: run diagnostics on the client first. Server-side mailbox moves require the messaging team.",
	},
}
