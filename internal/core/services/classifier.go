package services

import (
	"regexp"
	"strings"

	"github.com/lightfastai/lightfast-search/internal/core/domain"
)

var identifierPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^#?\d+$`),                                   // PR / issue number
	regexp.MustCompile(`^[A-Z][A-Z0-9]+-\d+$`),                      // ticket key, e.g. ENG-142
	regexp.MustCompile(`^[\w.-]+/[\w.-]+#\d+$`),                     // owner/repo#123
	regexp.MustCompile(`^[0-9a-fA-F]{7,40}$`),                       // commit sha
	regexp.MustCompile(`^(obs|doc|chk|ent|rel)_[A-Za-z0-9_-]{4,}$`), // stored ids
}

var (
	ownershipVocabulary = []string{
		"owner", "owners", "owns", "owned", "ownership", "maintainer", "maintainers",
		"maintains", "responsible", "who", "team", "on-call", "oncall",
	}
	dependencyVocabulary = []string{
		"depends", "dependency", "dependencies", "depend", "blocked", "blocks", "blocking",
		"blocker", "resolves", "resolved", "fixes", "upstream", "downstream",
	}
	orgVocabulary = []string{
		"policy", "policies", "roadmap", "organization", "organisation", "org-wide",
		"company", "company-wide", "teams", "across",
	}
)

// QueryClassifier infers intent, scope and mode from a raw query.
// It is stateless and safe for concurrent use.
type QueryClassifier struct{}

// NewQueryClassifier creates a new QueryClassifier
func NewQueryClassifier() *QueryClassifier {
	return &QueryClassifier{}
}

// Classify resolves a normalized request into a Classification
func (c *QueryClassifier) Classify(req *domain.SearchRequest) (domain.Classification, error) {
	if !req.Mode.Valid() {
		return domain.Classification{}, domain.InvalidField("mode", "unknown mode %q", req.Mode)
	}
	if !req.Scope.Valid() {
		return domain.Classification{}, domain.InvalidField("scope", "unknown scope %q", req.Scope)
	}
	if req.Scope == domain.ScopeOrg && req.OrganizationID == "" {
		return domain.Classification{}, domain.InvalidField("organizationId", "is required when scope is org")
	}

	out := domain.Classification{
		Intent:       domain.IntentSemantic,
		ResolvedMode: req.Mode,
	}

	words := tokenize(req.Query)
	switch {
	case IsIdentifier(req.Query):
		out.Identifier = true
		out.Intent = domain.IntentIdentifier
		out.ResolvedMode = domain.SearchModeFast
	case containsAny(words, ownershipVocabulary):
		out.Intent = domain.IntentOwnership
	case containsAny(words, dependencyVocabulary):
		out.Intent = domain.IntentDependency
	}
	out.OrgIntent = !out.Identifier && containsAny(words, orgVocabulary)

	if out.ResolvedMode == domain.SearchModeAuto {
		out.ResolvedMode = domain.SearchModeHybrid
	}

	switch {
	case req.Scope == domain.ScopeOrg:
		out.ResolvedScope = domain.ScopeOrg
	case req.Scope == domain.ScopeAuto && req.WorkspaceID == "":
		out.ResolvedScope = domain.ScopeOrg
	default:
		out.ResolvedScope = domain.ScopeWorkspace
	}

	out.Autoprompt = req.AutopromptEnabled() && !out.Identifier && out.ResolvedMode != domain.SearchModeFast
	return out, nil
}

// IsIdentifier reports whether the whole query is a fixed-format id
func IsIdentifier(q string) bool {
	q = strings.TrimSpace(q)
	if q == "" || strings.ContainsAny(q, " \t\n") {
		return false
	}
	for i, p := range identifierPatterns {
		if !p.MatchString(q) {
			continue
		}
		// a bare hex word like "defaced" is not a sha
		if i == 3 && !strings.ContainsAny(q, "0123456789") {
			continue
		}
		return true
	}
	return false
}

func containsAny(words []string, vocabulary []string) bool {
	for _, w := range words {
		for _, v := range vocabulary {
			if w == v {
				return true
			}
		}
	}
	return false
}

// edgeAllowlist returns the edge types the graph retriever may traverse for an intent
func edgeAllowlist(intent domain.IntentFamily) []domain.EdgeType {
	switch intent {
	case domain.IntentOwnership:
		return []domain.EdgeType{domain.EdgeOwnedBy, domain.EdgeMemberOf}
	case domain.IntentDependency:
		return []domain.EdgeType{domain.EdgeDependsOn, domain.EdgeBlockedBy, domain.EdgeResolves}
	case domain.IntentSemantic:
		return []domain.EdgeType{domain.EdgeReferences, domain.EdgeResolves, domain.EdgeAuthoredBy, domain.EdgeOwnedBy}
	}
	return nil
}

// vectorFamilies selects the dense namespaces for an intent and mode
func vectorFamilies(intent domain.IntentFamily, mode domain.SearchMode) []domain.VectorFamily {
	if mode == domain.SearchModeKnowledge {
		return []domain.VectorFamily{domain.VectorFamilyChunks, domain.VectorFamilySummaries}
	}
	switch intent {
	case domain.IntentIdentifier:
		return nil
	case domain.IntentOwnership, domain.IntentDependency:
		return []domain.VectorFamily{domain.VectorFamilyObservations, domain.VectorFamilySummaries}
	}
	return []domain.VectorFamily{domain.VectorFamilyChunks, domain.VectorFamilyObservations, domain.VectorFamilySummaries}
}
