package tasks

const extractPrompt = `You are extracting job tasks from an interview transcript.

The worker's job title is "%s". Below is the conversation, one line per
turn, prefixed with the speaker role.

%s

List every distinct work task the worker mentioned doing, one short
phrase each, in the worker's own wording. Ignore greetings, questions,
and anything the assistant said. Do not invent tasks.

Respond with JSON only: {"tasks": ["...", "..."]}`

const normalizePrompt = `Rewrite each job task phrase below as a canonical task statement:
start with an action verb in base form, no first-person pronouns,
5 to 20 words, keep the original meaning.

Phrases:
%s

Respond with JSON only, one rewritten statement per input phrase, same
order and count: {"normalized": ["...", "..."]}`

const dedupePrompt = `Group the task statements below so that statements describing the
same underlying task share a group. Every index must appear in exactly
one group; a statement with no duplicates forms its own group.

Statements:
%s

Respond with JSON only, using zero-based indices:
{"groups": [[0, 2], [1]]}`

const matchPrompt = `A worker described this task: "%s"

Candidate taxonomy task statements:
%s

Pick the candidate that describes the same task, if any. Respond with
JSON only: {"bestIndex": <zero-based index, or -1 if none fit>,
"confidence": "high" | "medium" | "low"}`
