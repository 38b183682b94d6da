// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package analysis

// intentPattern is one named intent with its trigger phrases. Intents are
// evaluated in declaration order; on equal confidence the earlier entry wins.
type intentPattern struct {
	name     string
	patterns []string
}

var intentPatterns = []intentPattern{
	{
		name: "question-answering",
		patterns: []string{
			"what is", "what are", "who is", "where is", "when did",
			"tell me about", "explain", "define", "?",
		},
	},
	{
		name: "content-generation",
		patterns: []string{
			"write", "draft", "compose", "create a", "generate",
			"blog post", "article", "story", "email", "essay",
		},
	},
	{
		name: "code-assistance",
		patterns: []string{
			"code", "function", "debug", "implement", "refactor",
			"python", "javascript", "golang", "sql", "compile", "script",
			"class", "api", "bug", "error message",
		},
	},
	{
		name: "analysis-request",
		patterns: []string{
			"analyze", "analyse", "compare", "evaluate", "assess",
			"summarize", "summarise", "review", "pros and cons", "trade-off",
		},
	},
	{
		name: "translation",
		patterns: []string{
			"translate", "translation", "in spanish", "in french",
			"in german", "in japanese", "into english",
		},
	},
	{
		name: "conversation",
		patterns: []string{
			"hello", "hi there", "how are you", "thanks", "thank you",
			"let's talk", "chat",
		},
	},
}

// capabilityKeywords maps capability tags to their trigger keywords.
// Detection is additive: a prompt can request several capabilities.
var capabilityKeywords = []struct {
	capability string
	keywords   []string
}{
	{"code-generation", []string{
		"code", "function", "script", "program", "implement", "debug",
		"python", "javascript", "golang", "java ", "sql", "regex", "algorithm",
	}},
	{"text-generation", []string{
		"write", "draft", "compose", "essay", "article", "blog",
		"story", "email", "letter", "paragraph",
	}},
	{"reasoning", []string{
		"why", "reason", "logic", "prove", "deduce", "step by step",
		"think through", "solve",
	}},
	{"analysis", []string{
		"analyze", "analyse", "compare", "evaluate", "assess",
		"summarize", "summarise", "insight", "trend",
	}},
	{"translation", []string{
		"translate", "translation",
	}},
	{"image-understanding", []string{
		"image", "photo", "picture", "diagram", "screenshot",
	}},
	{"math", []string{
		"calculate", "equation", "integral", "derivative", "probability",
		"statistics", "math",
	}},
}

// domainKeywords maps domains to their keyword sets. A domain is selected
// when at least two of its keywords appear; otherwise a single hit is used
// as a weak heuristic before falling back to "general".
var domainKeywords = []struct {
	domain   string
	keywords []string
}{
	{"software-engineering", []string{
		"code", "api", "database", "deploy", "kubernetes", "docker",
		"frontend", "backend", "bug", "repository", "function", "compile",
	}},
	{"finance", []string{
		"stock", "invest", "portfolio", "revenue", "profit", "budget",
		"tax", "accounting", "market", "trading",
	}},
	{"healthcare", []string{
		"patient", "diagnosis", "symptom", "treatment", "medical",
		"clinical", "drug", "therapy",
	}},
	{"legal", []string{
		"contract", "clause", "liability", "regulation", "compliance",
		"lawsuit", "attorney", "statute",
	}},
	{"marketing", []string{
		"campaign", "brand", "seo", "audience", "conversion",
		"engagement", "advertisement", "social media",
	}},
	{"science", []string{
		"experiment", "hypothesis", "molecule", "physics", "chemistry",
		"biology", "research paper", "dataset",
	}},
	{"education", []string{
		"lesson", "curriculum", "student", "teach", "homework",
		"exam", "course", "quiz",
	}},
}

// urgencyKeywords are checked in priority order; the first match wins.
// Critical is checked first so "urgent but take your time" stays critical.
var urgencyKeywords = []struct {
	urgency  string
	keywords []string
}{
	{"critical", []string{"urgent", "emergency", "immediately", "asap", "critical", "right now"}},
	{"high", []string{"quickly", "soon", "priority", "fast", "today", "by end of day"}},
	{"low", []string{"whenever", "no rush", "no hurry", "low priority", "eventually", "take your time"}},
}

// technicalTerms feed the linguistic complexity sub-score.
var technicalTerms = []string{
	"algorithm", "architecture", "asynchronous", "bandwidth", "compiler",
	"concurrency", "cryptography", "derivative", "distributed", "eigenvalue",
	"idempotent", "kernel", "latency", "neural", "polymorphism", "protocol",
	"recursion", "regression", "schema", "throughput", "topology",
}

// computationalIndicators feed the computational complexity sub-score.
var computationalIndicators = []string{
	"compute", "calculate", "process", "optimize", "simulate", "aggregate",
	"dataset", "pipeline", "batch", "parallel", "large scale", "benchmark",
	"algorithm", "train", "transform",
}

// multiStepIndicators mark requests that require ordered sub-tasks.
var multiStepIndicators = []string{
	"first", "then", "finally", "after that", "step", "and also",
	"followed by", "next,",
}

// reasoningIndicators feed the reasoning complexity sub-score.
var reasoningIndicators = []string{
	"why", "how", "compare", "contrast", "derive", "prove", "justify",
	"reason", "logic", "trade-off", "implication", "cause", "because",
	"what if", "explain",
}

// externalDataIndicators mark prompts that need live data the model lacks.
var externalDataIndicators = []string{
	"latest", "current", "today's", "real-time", "stock price",
	"weather", "news", "as of now",
}

// personalContextIndicators mark prompts referencing the user's own context.
var personalContextIndicators = []string{
	"my ", "our ", "i am", "i'm", "me ", "we are",
}

// followUpIndicators mark continuation turns.
var followUpIndicators = []string{
	"also", "and what about", "additionally", "furthermore",
	"as i said", "continuing", "next", "again",
}

var creativeIndicators = []string{
	"story", "poem", "creative", "imagine", "fiction", "brainstorm", "invent",
}

var analyticalIndicators = []string{
	"analyze", "analyse", "evaluate", "assess", "measure", "quantify", "compare",
}

var briefCues = []string{"brief", "short", "concise", "one line", "tl;dr", "quick summary"}

var detailedCues = []string{"detailed", "comprehensive", "in depth", "in-depth", "thorough", "elaborate"}
