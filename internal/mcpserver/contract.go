package mcpserver

// DocumentFormat describes the layout and conventions that LLM consumers
// should follow when creating or editing speclink documents.
const DocumentFormat = `# speclink Document Format

Every artifact is described by up to three documents, one per phase.

## Layout

| Phase          | Folder            | File name                  | Element prefix |
|----------------|-------------------|----------------------------|----------------|
| requirement    | ` + "`requirements/`" + `   | ` + "`<artifact>.req.md`" + `    | ` + "`REQ`" + ` |
| design         | ` + "`design/`" + `         | ` + "`<artifact>.design.md`" + ` | ` + "`DES`" + ` |
| implementation | ` + "`implementation/`" + ` | ` + "`<artifact>.impl.md`" + `   | ` + "`IMP`" + ` |

Artifact names use letters, digits and hyphens.

## Front matter

` + "```" + `markdown
---
artifact: payments
phase: design
depends-on: [payments.req]
references: [ledger.design]
version: 1
last-updated: 2025-01-15T09:30:00Z
---
` + "```" + `

## Rules

1. The ` + "`---`" + ` fence must be the first line of the file.
2. Values are scalars or inline lists (` + "`[a, b]`" + `); block lists use ` + "`- item`" + ` lines.
3. ` + "`depends-on`" + ` and ` + "`references`" + ` entries are bare ` + "`<artifact>.<tag>`" + ` names.
   Anything more (a version, a section) is reported as over-specified.
4. A document may depend on the same or an earlier phase only, and dependencies must not form a cycle.
5. Mention another document inline in the body with ` + "`@<artifact>.<tag>`" + `.
6. ` + "`last-updated`" + ` is maintained by speclink on every create and update.

## Elements

Elements are level-3 (or deeper) headings starting with an identifier:

` + "```" + `markdown
### REQ-0001 Accept card payments
Users can pay with a card.
` + "```" + `

The block of an element runs from its heading to the next heading of the same or a
shallower level. Lines inside fenced code blocks are never headings. ` + "`REQ-0001`" + ` referenced from ` + "`design/payments.design.md`" + ` resolves to
` + "`requirements/payments.req.md`" + `. To point at another artifact, write
` + "`// ledger/REQ-0001`" + ` on the referencing line or the line above it.
`
