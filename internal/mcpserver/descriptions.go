package mcpserver

func describeFindDuplicates() string {
	return `Finds runs of lines that appear identically (ignoring whitespace) in two or more files.

USE WHEN:
- Finding copy-paste code that should be refactored
- Identifying candidates for shared utilities or abstractions
- Checking whether a block being written already exists elsewhere

INTERPRETING RESULTS:
- Each group is one duplicated run: its length in lines, the files sharing it,
  and where it starts and ends in each of them
- Blank lines and comment lines break runs, so a run is contiguous code
- A line counts only if it recurs in every file of the group
- Warnings name files that could not be read or decoded; they took no part

METRICS RETURNED:
- Groups: lines, files, instances (file, start_line, end_line), text
- Summary: files scanned, duplicated lines, duplication ratio, hotspots

Raise min_lines to cut noise from short, trivial repeats.`
}
