package chat

const (
	analyzePrompt = `You are analyzing one message from a worker describing their job tasks.

Job title: %s
Tasks mentioned so far: %d
Message:
"""
%s
"""

Count how many distinct new work tasks this message mentions and list them.
Rate how much the message touches each coverage category. Categories are
exactly: information-input, mental-processes, work-output,
interacting-with-others. Levels are exactly: none, low, medium, high.
Rate overall engagement (low, medium, high) from the message's length and
specificity. Set wantsToStop true only if the worker clearly says they are
finished describing their job.

Return strict JSON object:
{"newTaskCount":2,"newActivities":["..."],"coverage":{"information-input":"low","mental-processes":"none","work-output":"medium","interacting-with-others":"none"},"engagement":"medium","wantsToStop":false}`

	selectActionPrompt = `You are guiding a short interview that collects a worker's job tasks.

Job title: %s
Turn: %d
Tasks collected: %d
Engagement: %s
Coverage: information-input=%s, mental-processes=%s, work-output=%s, interacting-with-others=%s
Clarifying question asked yet: %v
Suggestions shown: %d

Recent conversation:
%s
%s
Choose the single best next action from exactly:
ask-gap-question, show-suggestions, encourage-more, offer-to-finish.
Prefer ask-gap-question when a coverage category is weak. Use
offer-to-finish only when the task list already looks representative.
If reference tasks are listed above, also assess how much of that
occupation's GENERAL duties the worker has covered (high, medium, low).
Ignore niche or specialized reference tasks a typical worker would not
do; do not hold their absence against the worker.

Return strict JSON object:
{"action":"ask-gap-question","question":"...","gapArea":"interacting-with-others","taxonomyCoverage":"medium"}`

	referenceTasksBlock = `
Reference tasks for this occupation:
%s
`

	suggestionsPrompt = `Generate task suggestions for a worker whose job title is "%s".

They already mentioned:
%s

Previously suggested (do not repeat or paraphrase):
%s

Write 3 to 5 short task statements this worker plausibly also does.
Each statement starts with a present-tense verb, names a concrete
object, and states a purpose. Avoid overlap with anything listed above.

Return strict JSON object:
{"suggestions":["Prepare meeting agendas to keep discussions on track"]}`

	composeSystemPrompt = `You are a friendly interviewer helping a %s list the tasks they do at
work. Keep replies short, warm, and focused on drawing out more tasks.
Never invent tasks the worker did not mention.`

	composeOpenPrompt = `Write a short opening message inviting a %s to describe the main tasks
they do in a typical week. One or two sentences.`

	composeGapQuestionPrompt = `Rephrase this interview question naturally, keeping its meaning: "%s"
Reply with the question only.`

	composeShowSuggestionsPrompt = `Write one or two sentences introducing a list of suggested tasks the
worker can pick from. The suggestions follow your message as a separate
list, so do not enumerate them yourself.`

	composeEncourageMorePrompt = `The worker has shared %d tasks so far. Write one or two sentences
encouraging them to share more of what they do.`

	composeOfferToFinishPrompt = `The worker has shared %d tasks. Write one or two sentences noting the
list looks solid and asking whether they want to add anything else or
wrap up.`

	composeFinishPrompt = `The worker finished describing their job and shared %d tasks. Write one
or two sentences thanking them and saying the list is ready to review.`

	comprehensivenessPrompt = `A %s listed these tasks up front:
%s

Reference tasks for the occupation:
%s

Does the list already cover the occupation's general duties well enough
that an interview would add little? Consider only general duties, not
niche ones. Return strict JSON object: {"comprehensive":true}`
)
