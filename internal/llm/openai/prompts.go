package openai

const visionSystemPrompt = `You analyze screenshots captured from contact-center desktop tools (CRM, ticketing, collections, order entry). Respond with a single JSON object and nothing else.`

const visionUserPrompt = `Identify the tool shown and extract the visible form state. Respond with JSON of this exact shape:

{
  "system": "<short tag for the tool, e.g. crm, ticketing, collections, order-entry, unknown>",
  "data": {
    "<field name>": "<field value>"
  },
  "criticalFlags": {
    "<field name>": true
  },
  "findings": ["<free-text observation>"]
}

Rules:
- "system" and "data" are mandatory. Use "unknown" when the tool cannot be identified.
- Put every legible field label and value into "data".
- Mark a field in "criticalFlags" only when it is visibly mandatory (asterisk, red highlight) and empty or inconsistent.
- "findings" holds anything noteworthy that does not fit a field: error banners, wrong tabs, stale timestamps.`
