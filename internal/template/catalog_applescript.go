package template

func applescriptCatalog() []Template {
	return []Template{
		{
			Name:     "backup",
			Keywords: []string{"backup", "copy", "archive", "folder", "files", "documents", "save"},
			Filename: "backup.applescript",
			Content: `-- {{DESCRIPTION}}
on run argv
    try
        set sourceFolder to POSIX file (item 1 of argv) as alias
        set backupRoot to (path to home folder as text) & "Backups:"

        tell application "Finder"
            if not (exists folder backupRoot) then
                make new folder at (path to home folder) with properties {name:"Backups"}
            end if
            duplicate sourceFolder to folder backupRoot with replacing
        end tell

        display notification "Backup complete" with title "Backup"
    on error errMsg number errNum
        display dialog "Backup failed: " & errMsg buttons {"OK"} default button 1
        error errMsg number errNum
    end try
end run
`,
			Documentation:    "Duplicates a folder into ~/Backups via Finder.",
			SafetyHint:       "Replaces an existing copy of the same folder under ~/Backups.",
			EstimatedRuntime: "depends on folder size",
		},
		{
			Name:     "app-control",
			Keywords: []string{"open", "quit", "application", "app", "launch", "activate", "close"},
			Filename: "appcontrol.applescript",
			Content: `-- {{DESCRIPTION}}
on run argv
    try
        set appName to item 1 of argv
        set theAction to item 2 of argv

        if theAction is "open" then
            tell application appName to activate
            display notification appName & " launched" with title "App Control"
        else if theAction is "quit" then
            if application appName is running then
                tell application appName to quit
                display notification appName & " quit" with title "App Control"
            end if
        else
            error "unknown action: " & theAction
        end if
    on error errMsg number errNum
        display dialog "App control failed: " & errMsg buttons {"OK"} default button 1
        error errMsg number errNum
    end try
end run
`,
			Documentation:    "Opens or quits a named application.",
			SafetyHint:       "Quitting an app with unsaved work may prompt or lose changes.",
			EstimatedRuntime: "seconds",
		},
		{
			Name:     "system-info",
			Keywords: []string{"system", "info", "monitor", "disk", "space", "battery", "memory"},
			Filename: "sysinfo.applescript",
			Content: `-- {{DESCRIPTION}}
on run
    try
        set diskInfo to do shell script "df -h / | tail -1 | awk '{print $4 \" free\"}'"
        set memInfo to do shell script "vm_stat | head -2 | tail -1"
        set report to "Disk: " & diskInfo & return & "Memory: " & memInfo
        display dialog report buttons {"OK"} default button 1 with title "System Info"
    on error errMsg number errNum
        display dialog "Could not gather system info: " & errMsg buttons {"OK"} default button 1
        error errMsg number errNum
    end try
end run
`,
			Documentation:    "Shows free disk space and a memory statistic in a dialog.",
			SafetyHint:       "Read-only shell queries.",
			EstimatedRuntime: "seconds",
		},
		{
			Name:     "reminder",
			Keywords: []string{"reminder", "notification", "alert", "notify", "schedule", "message"},
			Filename: "reminder.applescript",
			Content: `-- {{DESCRIPTION}}
on run argv
    try
        set theMessage to item 1 of argv
        set delaySeconds to 0
        if (count of argv) > 1 then set delaySeconds to (item 2 of argv) as integer

        if delaySeconds > 0 then delay delaySeconds
        display notification theMessage with title "Reminder" sound name "Glass"
    on error errMsg number errNum
        display dialog "Reminder failed: " & errMsg buttons {"OK"} default button 1
        error errMsg number errNum
    end try
end run
`,
			Documentation:    "Shows a notification, optionally after a delay.",
			SafetyHint:       "Harmless; only displays a notification.",
			EstimatedRuntime: "delay + instant",
		},
	}
}

func applescriptSkeleton(description, note string) string {
	header := "-- " + sanitize(description) + "\n"
	if note != "" {
		header += "-- " + sanitize(note) + "\n"
	}
	return header + `on run argv
    try
        display notification "Starting..." with title "Automation"

        -- TODO: implement: ` + sanitize(description) + `

        display notification "Done." with title "Automation"
    on error errMsg number errNum
        display dialog "Script failed: " & errMsg buttons {"OK"} default button 1
        error errMsg number errNum
    end try
end run
`
}
