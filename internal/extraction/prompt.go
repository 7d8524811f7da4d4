package extraction

import (
	"fmt"
	"strings"
)

const systemPrompt = `You extract structured data from web pages.
Always answer with a JSON array wrapped in <blocks></blocks> tags and nothing else.
Never wrap the JSON in markdown code fences.`

const schemaPrompt = `Here is the content from the URL:
<url>%s</url>

<url_content>
%s
</url_content>

The user has made the following request for what information to extract from the above content:

<user_request>
%s
</user_request>

<schema_block>
%s
</schema_block>

Extract every item in the content that matches the schema. Each item must be a JSON object
whose keys are exactly the schema's property names. Use an empty string for text fields
that are not present, never invent values.

Result
Output the final list of JSON objects, wrapped in <blocks>...</blocks> XML tags.`

const blockPrompt = `Here is the content from the URL:
<url>%s</url>

<url_content>
%s
</url_content>

Break the content into semantically relevant blocks. For each block return a JSON object
with the keys "index" (position of the block), "tags" (an array of short semantic labels)
and "content" (an array of the block's sentences).
%s
Result
Output the final list of JSON objects, wrapped in <blocks>...</blocks> XML tags.`

func buildSchemaPrompt(url, content, instruction, schemaJSON string) string {
	if strings.TrimSpace(instruction) == "" {
		instruction = "Extract all items matching the schema."
	}
	return fmt.Sprintf(schemaPrompt, url, content, strings.TrimSpace(instruction), schemaJSON)
}

func buildBlockPrompt(url, content, instruction string) string {
	extra := ""
	if s := strings.TrimSpace(instruction); s != "" {
		extra = "\nFollow these additional instructions:\n<user_request>\n" + s + "\n</user_request>\n"
	}
	return fmt.Sprintf(blockPrompt, url, content, extra)
}
