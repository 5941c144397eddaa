// Rule-based labeling of post text for coercion-related policy violations.
//
// Rules are loaded from tabular sources named in a JSON manifest: lexicons (term → label), regex patterns, indicator lists, and an optional external score threshold. An [Engine] evaluates every rule against a post's text and returns the union of matched labels, plus meta labels (aggregates and review flags) and a severity label. The rules are tuned to over-warn: matches are additive and never exclusive.
package labeling
