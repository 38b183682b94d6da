// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

// Package analysis converts raw prompt text into a structured request
// context: intent, complexity, required capabilities, domain, urgency,
// conversational patterns and token estimates. It is the first stage of the
// routing pipeline and has no dependency on other routing components.
package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"axonflow/router/shared/logger"
	"axonflow/router/shared/types"
)

// GeneralQueryCapability is the fallback capability when no specific
// capability is detected.
const GeneralQueryCapability = "general-query"

// Analyzer classifies prompts. Analysis never fails hard: any internal
// error yields the documented default context so routing can proceed.
type Analyzer struct {
	log *logger.Logger
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(log *logger.Logger) *Analyzer {
	if log == nil {
		log = logger.New("context-analyzer")
	}
	return &Analyzer{log: log}
}

// DefaultContext returns the conservative context used when analysis cannot
// run: general-query intent, complexity 50, general domain, normal urgency.
func DefaultContext() *types.RequestContext {
	return &types.RequestContext{
		Intent: types.Intent{
			Primary:    GeneralQueryCapability,
			Confidence: 0.2,
			Reasoning:  "default context: analysis unavailable",
		},
		Complexity: types.Complexity{
			Overall:       50,
			Linguistic:    50,
			Computational: 50,
			Reasoning:     50,
		},
		Capabilities: []string{GeneralQueryCapability},
		Domain:       "general",
		Urgency:      types.PriorityNormal,
		Metadata: types.ContextMetadata{
			Language:       "en",
			Sentiment:      "neutral",
			Formality:      "neutral",
			TechnicalLevel: "intermediate",
		},
	}
}

// Analyze builds a RequestContext for the prompt. userID and previous are
// optional; previous marks the context as a continuation turn.
func (a *Analyzer) Analyze(prompt, userID string, previous *types.RequestContext) (result *types.RequestContext) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Error(userID, "", "context analysis panicked, using default context",
				map[string]interface{}{"panic": fmt.Sprint(r)})
			result = DefaultContext()
		}
	}()

	lower := strings.ToLower(prompt)
	words := strings.Fields(lower)
	if len(words) == 0 {
		return DefaultContext()
	}

	ctx := &types.RequestContext{
		Intent:       a.detectIntent(lower),
		Capabilities: a.detectCapabilities(lower),
		Domain:       a.classifyDomain(lower),
		Urgency:      a.classifyUrgency(lower),
	}
	ctx.Complexity = a.scoreComplexity(lower, words)
	ctx.Patterns = a.detectPatterns(lower, previous)
	ctx.Metadata = a.buildMetadata(lower, words, ctx.Domain)

	return ctx
}

// detectIntent matches the prompt against every intent pattern set.
// Confidence is min(0.95, matches/totalPatterns*0.8 + 0.2). The highest
// confidence wins; ties break by declaration order; runner-ups with at
// least one match become secondary intents.
func (a *Analyzer) detectIntent(lower string) types.Intent {
	type scored struct {
		name       string
		matches    int
		confidence float64
	}

	var candidates []scored
	for _, ip := range intentPatterns {
		matches := countMatches(lower, ip.patterns)
		if matches == 0 {
			continue
		}
		confidence := math.Min(0.95, float64(matches)/float64(len(ip.patterns))*0.8+0.2)
		candidates = append(candidates, scored{ip.name, matches, confidence})
	}

	if len(candidates) == 0 {
		return types.Intent{
			Primary:    GeneralQueryCapability,
			Confidence: 0.2,
			Reasoning:  "no intent patterns matched",
		}
	}

	// Stable sort keeps declaration order for equal confidences.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].confidence > candidates[j].confidence
	})

	secondary := make([]string, 0, len(candidates)-1)
	for _, c := range candidates[1:] {
		secondary = append(secondary, c.name)
	}

	best := candidates[0]
	return types.Intent{
		Primary:    best.name,
		Secondary:  secondary,
		Confidence: best.confidence,
		Reasoning:  fmt.Sprintf("%d pattern(s) matched for %s", best.matches, best.name),
	}
}

// scoreComplexity blends linguistic (30%), computational (40%) and
// reasoning (30%) sub-scores, each capped at 100 before blending.
func (a *Analyzer) scoreComplexity(lower string, words []string) types.Complexity {
	var factors []string

	// Linguistic: sentence length, technical-term density, input length.
	sentences := countSentences(lower)
	avgWords := float64(len(words)) / float64(sentences)
	sentenceScore := math.Min(100, avgWords*4)

	techHits := countMatches(lower, technicalTerms)
	density := float64(techHits) / float64(len(words))
	techScore := math.Min(100, density*1000)
	if techHits > 0 {
		factors = append(factors, "technical-terms")
	}

	lengthScore := math.Min(100, float64(len(words))/10)
	if len(words) > 200 {
		factors = append(factors, "long-input")
	}

	linguistic := math.Min(100, 0.4*sentenceScore+0.3*techScore+0.3*lengthScore)

	// Computational: compute/data/algorithm plus multi-step indicators.
	computeHits := countMatches(lower, computationalIndicators)
	stepHits := countMatches(lower, multiStepIndicators)
	computational := math.Min(100, float64(computeHits)*15+float64(stepHits)*10)
	if computeHits > 0 {
		factors = append(factors, "computational-keywords")
	}
	if stepHits > 1 {
		factors = append(factors, "multi-step")
	}

	// Reasoning: why/how/compare/logic indicators.
	reasonHits := countMatches(lower, reasoningIndicators)
	reasoning := math.Min(100, float64(reasonHits)*12)
	if reasonHits > 0 {
		factors = append(factors, "reasoning-indicators")
	}

	return types.Complexity{
		Overall:       0.3*linguistic + 0.4*computational + 0.3*reasoning,
		Linguistic:    linguistic,
		Computational: computational,
		Reasoning:     reasoning,
		Factors:       factors,
	}
}

// detectCapabilities is keyword-driven and additive; a prompt can request
// multiple capabilities. Empty results fall back to general-query.
func (a *Analyzer) detectCapabilities(lower string) []string {
	var capabilities []string
	for _, ck := range capabilityKeywords {
		if containsAny(lower, ck.keywords) {
			capabilities = append(capabilities, ck.capability)
		}
	}
	if len(capabilities) == 0 {
		capabilities = []string{GeneralQueryCapability}
	}
	return capabilities
}

// classifyDomain requires at least two keyword hits for a confident match,
// falls back to a single-keyword heuristic, then to "general".
func (a *Analyzer) classifyDomain(lower string) string {
	singleHit := ""
	for _, dk := range domainKeywords {
		hits := countMatches(lower, dk.keywords)
		if hits >= 2 {
			return dk.domain
		}
		if hits == 1 && singleHit == "" {
			singleHit = dk.domain
		}
	}
	if singleHit != "" {
		return singleHit
	}
	return "general"
}

// classifyUrgency is a priority-ordered keyword check: critical > high > low,
// defaulting to normal. First match wins.
func (a *Analyzer) classifyUrgency(lower string) types.Priority {
	for _, uk := range urgencyKeywords {
		if containsAny(lower, uk.keywords) {
			return types.Priority(uk.urgency)
		}
	}
	return types.PriorityNormal
}

func (a *Analyzer) detectPatterns(lower string, previous *types.RequestContext) types.ContextPatterns {
	p := types.ContextPatterns{
		IsFollowUp:           containsAny(lower, followUpIndicators),
		HasPersonalContext:   containsAny(lower, personalContextIndicators),
		RequiresExternalData: containsAny(lower, externalDataIndicators),
		IsCreativeTask:       containsAny(lower, creativeIndicators),
		IsAnalyticalTask:     containsAny(lower, analyticalIndicators),
		HasPreviousContext:   previous != nil,
	}

	if p.IsFollowUp {
		p.Patterns = append(p.Patterns, "follow-up")
	}
	if p.HasPersonalContext {
		p.Patterns = append(p.Patterns, "personal-context")
	}
	if p.RequiresExternalData {
		p.Patterns = append(p.Patterns, "external-data")
	}
	if p.IsCreativeTask {
		p.Patterns = append(p.Patterns, "creative")
	}
	if p.IsAnalyticalTask {
		p.Patterns = append(p.Patterns, "analytical")
	}
	return p
}

// buildMetadata estimates tokens (words * 1.3) and the expected response
// length (2x the input estimate, halved for brief cues, doubled for
// detailed cues).
func (a *Analyzer) buildMetadata(lower string, words []string, domain string) types.ContextMetadata {
	estimatedTokens := int(math.Ceil(float64(len(words)) * 1.3))

	expected := estimatedTokens * 2
	if containsAny(lower, briefCues) {
		expected /= 2
	} else if containsAny(lower, detailedCues) {
		expected *= 2
	}

	techHits := countMatches(lower, technicalTerms)
	level := "basic"
	switch {
	case techHits >= 3:
		level = "advanced"
	case techHits >= 1:
		level = "intermediate"
	}

	return types.ContextMetadata{
		EstimatedTokens:        estimatedTokens,
		ExpectedResponseLength: expected,
		Language:               "en",
		TopicTags:              topicTags(lower, domain),
		Sentiment:              detectSentiment(lower),
		Formality:              detectFormality(lower),
		TechnicalLevel:         level,
	}
}

func topicTags(lower, domain string) []string {
	for _, dk := range domainKeywords {
		if dk.domain != domain {
			continue
		}
		var tags []string
		for _, kw := range dk.keywords {
			if strings.Contains(lower, kw) {
				tags = append(tags, strings.TrimSpace(kw))
				if len(tags) == 5 {
					break
				}
			}
		}
		return tags
	}
	return nil
}

var positiveWords = []string{"great", "love", "excellent", "awesome", "thanks", "wonderful"}
var negativeWords = []string{"hate", "terrible", "awful", "broken", "frustrated", "angry"}

func detectSentiment(lower string) string {
	pos := countMatches(lower, positiveWords)
	neg := countMatches(lower, negativeWords)
	switch {
	case pos > neg:
		return "positive"
	case neg > pos:
		return "negative"
	default:
		return "neutral"
	}
}

var formalCues = []string{"please", "kindly", "would you", "could you", "dear "}
var informalCues = []string{"gonna", "wanna", "hey", "lol", "btw", "u "}

func detectFormality(lower string) string {
	formal := countMatches(lower, formalCues)
	informal := countMatches(lower, informalCues)
	switch {
	case formal > informal:
		return "formal"
	case informal > formal:
		return "informal"
	default:
		return "neutral"
	}
}

func countSentences(text string) int {
	count := 0
	for _, r := range text {
		if r == '.' || r == '?' || r == '!' {
			count++
		}
	}
	if count == 0 {
		return 1
	}
	return count
}

func countMatches(text string, patterns []string) int {
	matches := 0
	for _, p := range patterns {
		if strings.Contains(text, p) {
			matches++
		}
	}
	return matches
}

func containsAny(text string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}
