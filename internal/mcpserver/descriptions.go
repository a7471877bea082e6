package mcpserver

// Tool descriptions with interpretation guidance for LLMs.

func describeScanDebt() string {
	return `Scans a workspace for technical debt: TODO-style markers, overly complex functions, vulnerable npm dependencies, and stale files that many other files still import. Findings are enriched with git blame so each one carries an author and an age.

USE WHEN:
- Deciding what to clean up before a release or refactor
- Finding the files where debt concentrates
- Checking whether old markers are still owned by someone
- Listing vulnerable dependencies reported by npm audit

INTERPRETING RESULTS:
- Severity levels: critical > high > medium > low
- todo: severity grows with age (>365 days critical, >180 high, >90 medium)
- complexity: cyclomatic estimate against the configured cut points
- dep: severity copied from the audit report
- stale: unchanged for a long time but imported by many files, so changes there are risky
- hotFiles: up to 10 files ranked by score (critical 25, high 10, medium 5, low 2, capped at 100)
- ageInDays is omitted when the line has no committed history

METRICS RETURNED:
- items: id, kind, severity, file, line, message, author, ageInDays, lastCommit
- stats: totalDebt, byKind, bySeverity, hotFiles (score, importCount, debtItems)
- commitSha and scannedAt identify the scanned revision
- stats always describe the whole scan; min_severity and kinds only filter items`
}

func describeClearBlameCache() string {
	return `Drops cached git blame results so the next scan re-reads history.

USE WHEN:
- Commits were rewritten (rebase, amend) and ages or authors look wrong
- A scan should reflect history that changed since the server started

INTERPRETING RESULTS:
- Returns a confirmation naming what was cleared
- Clearing never changes files or git state; only later scans get slower

METRICS RETURNED:
- cleared: the workspace named by path, or "all" for every workspace this server has scanned`
}
