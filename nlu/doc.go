// Package nlu defines the natural-language-understanding surface the
// dialogue engine consumes: the Interpreter that turns raw text into a
// parsed Message, the IntentClassifier used to re-score intents against a
// restricted candidate set, and the builtin rule-based abilities that
// extract entities without a model.
//
// Model training and serving live outside this repository; RuleInterpreter
// is the no-model path that runs entirely on configured rules.
package nlu
