package template

func powershellCatalog() []Template {
	return []Template{
		{
			Name:     "backup",
			Keywords: []string{"backup", "copy", "archive", "documents", "folder", "files", "save"},
			Filename: "backup.ps1",
			Content: `# {{DESCRIPTION}}
param(
    [Parameter(Mandatory = $true)]
    [string]$SourcePath,

    [string]$DestinationPath = "$env:USERPROFILE\Backups",

    [switch]$Compress
)

try {
    if (-not (Test-Path -Path $SourcePath)) {
        throw "Source path not found: $SourcePath"
    }

    $stamp = Get-Date -Format "yyyyMMdd-HHmmss"
    $target = Join-Path $DestinationPath "backup-$stamp"
    New-Item -ItemType Directory -Path $target -Force | Out-Null

    Write-Host "Backing up $SourcePath to $target"
    Copy-Item -Path (Join-Path $SourcePath '*') -Destination $target -Recurse -ErrorAction Stop

    if ($Compress) {
        $zip = "$target.zip"
        Compress-Archive -Path $target -DestinationPath $zip -Force
        Remove-Item -Path $target -Recurse -Force
        Write-Host "Backup archived to $zip"
    } else {
        Write-Host "Backup complete: $target"
    }
}
catch {
    Write-Error "Backup failed: $_"
    exit 1
}
`,
			Documentation:    "Copies a source directory into a time-stamped backup folder, optionally compressed to a zip archive.",
			SafetyHint:       "Writes only under the destination path. Verify free disk space for large sources.",
			EstimatedRuntime: "seconds to minutes depending on source size",
		},
		{
			Name:     "system-monitor",
			Keywords: []string{"monitor", "system", "cpu", "memory", "disk", "usage", "health", "watch"},
			Filename: "monitor.ps1",
			Content: `# {{DESCRIPTION}}
param(
    [int]$IntervalSeconds = 5,
    [int]$Samples = 12
)

try {
    for ($i = 1; $i -le $Samples; $i++) {
        $cpu = (Get-CimInstance Win32_Processor | Measure-Object -Property LoadPercentage -Average).Average
        $os = Get-CimInstance Win32_OperatingSystem
        $memUsed = [math]::Round(($os.TotalVisibleMemorySize - $os.FreePhysicalMemory) / 1MB, 2)
        $disk = Get-CimInstance Win32_LogicalDisk -Filter "DriveType=3" |
            Select-Object DeviceID, @{n = 'FreeGB'; e = { [math]::Round($_.FreeSpace / 1GB, 1) } }

        Write-Host ("[{0}] CPU {1}% | Memory used {2} GB" -f (Get-Date -Format T), $cpu, $memUsed)
        $disk | ForEach-Object { Write-Host ("    {0} free: {1} GB" -f $_.DeviceID, $_.FreeGB) }

        if ($i -lt $Samples) { Start-Sleep -Seconds $IntervalSeconds }
    }
}
catch {
    Write-Error "Monitoring failed: $_"
    exit 1
}
`,
			Documentation:    "Samples CPU load, memory usage, and free disk space at a fixed interval.",
			SafetyHint:       "Read-only; queries CIM counters without changing system state.",
			EstimatedRuntime: "IntervalSeconds * Samples",
		},
		{
			Name:     "user-management",
			Keywords: []string{"user", "account", "create", "local", "password", "group", "member"},
			Filename: "user.ps1",
			Content: `# {{DESCRIPTION}}
param(
    [Parameter(Mandatory = $true)]
    [string]$UserName,

    [string]$FullName = "",
    [string]$Group = "Users"
)

try {
    if (Get-LocalUser -Name $UserName -ErrorAction SilentlyContinue) {
        throw "User $UserName already exists"
    }

    $password = Read-Host -Prompt "Password for $UserName" -AsSecureString
    New-LocalUser -Name $UserName -FullName $FullName -Password $password -ErrorAction Stop
    Add-LocalGroupMember -Group $Group -Member $UserName -ErrorAction Stop
    Write-Host "Created $UserName and added to $Group"
}
catch {
    Write-Error "User creation failed: $_"
    exit 1
}
`,
			Documentation:    "Creates a local user interactively and adds it to a group.",
			SafetyHint:       "Changes local accounts; requires an elevated shell.",
			EstimatedRuntime: "under a minute",
		},
		{
			Name:     "file-processing",
			Keywords: []string{"file", "process", "rename", "move", "sort", "extension", "organize", "clean"},
			Filename: "organize.ps1",
			Content: `# {{DESCRIPTION}}
param(
    [Parameter(Mandatory = $true)]
    [string]$Path,

    [switch]$WhatIf
)

try {
    if (-not (Test-Path -Path $Path)) {
        throw "Path not found: $Path"
    }

    Get-ChildItem -Path $Path -File | ForEach-Object {
        $ext = $_.Extension.TrimStart('.').ToLower()
        if (-not $ext) { $ext = 'no-extension' }
        $bucket = Join-Path $Path $ext
        if (-not (Test-Path $bucket)) {
            New-Item -ItemType Directory -Path $bucket | Out-Null
        }
        Move-Item -Path $_.FullName -Destination $bucket -WhatIf:$WhatIf
        Write-Host "Moved $($_.Name) -> $ext/"
    }
}
catch {
    Write-Error "File processing failed: $_"
    exit 1
}
`,
			Documentation:    "Sorts files in a directory into subfolders by extension. Supports -WhatIf dry runs.",
			SafetyHint:       "Moves files within the given directory only. Run with -WhatIf first.",
			EstimatedRuntime: "seconds for typical folders",
		},
		{
			Name:     "service-management",
			Keywords: []string{"service", "restart", "start", "stop", "status", "daemon", "windows"},
			Filename: "service.ps1",
			Content: `# {{DESCRIPTION}}
param(
    [Parameter(Mandatory = $true)]
    [string]$ServiceName,

    [ValidateSet('Status', 'Start', 'Restart')]
    [string]$Action = 'Status'
)

try {
    $svc = Get-Service -Name $ServiceName -ErrorAction Stop
    switch ($Action) {
        'Status'  { Write-Host "$($svc.Name): $($svc.Status)" }
        'Start'   { Start-Service -Name $ServiceName; Write-Host "$ServiceName started" }
        'Restart' { Restart-Service -Name $ServiceName; Write-Host "$ServiceName restarted" }
    }
}
catch {
    Write-Error "Service operation failed: $_"
    exit 1
}
`,
			Documentation:    "Queries, starts, or restarts a Windows service by name.",
			SafetyHint:       "Start/Restart affect a live service; Status is read-only.",
			EstimatedRuntime: "seconds",
		},
	}
}

func powershellSkeleton(description, note string) string {
	header := "# " + sanitize(description) + "\n"
	if note != "" {
		header += "# " + sanitize(note) + "\n"
	}
	return header + `param(
    [switch]$VerboseOutput
)

try {
    Write-Host "Starting..."

    # TODO: implement: ` + sanitize(description) + `

    Write-Host "Done."
}
catch {
    Write-Error "Script failed: $_"
    exit 1
}
`
}
