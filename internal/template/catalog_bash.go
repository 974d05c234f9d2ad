package template

func bashCatalog() []Template {
	return []Template{
		{
			Name:     "backup",
			Keywords: []string{"backup", "copy", "archive", "tar", "folder", "files", "directory", "save"},
			Filename: "backup.sh",
			Content: `#!/usr/bin/env bash
# {{DESCRIPTION}}
set -euo pipefail
trap 'echo "error on line $LINENO" >&2' ERR

SOURCE="${1:?usage: backup.sh SOURCE [DEST]}"
DEST="${2:-$HOME/backups}"

if [ ! -d "$SOURCE" ]; then
    echo "source directory not found: $SOURCE" >&2
    exit 1
fi

mkdir -p "$DEST"
STAMP=$(date +%Y%m%d-%H%M%S)
ARCHIVE="$DEST/backup-$STAMP.tar.gz"

echo "backing up $SOURCE to $ARCHIVE"
tar -czf "$ARCHIVE" -C "$(dirname "$SOURCE")" "$(basename "$SOURCE")"
echo "backup complete: $ARCHIVE ($(du -h "$ARCHIVE" | cut -f1))"
`,
			Documentation:    "Creates a time-stamped tar.gz archive of a directory.",
			SafetyHint:       "Writes only under the destination directory.",
			EstimatedRuntime: "depends on source size",
		},
		{
			Name:     "system-monitor",
			Keywords: []string{"monitor", "system", "cpu", "memory", "disk", "usage", "load", "watch", "health"},
			Filename: "monitor.sh",
			Content: `#!/usr/bin/env bash
# {{DESCRIPTION}}
set -euo pipefail
trap 'echo "error on line $LINENO" >&2' ERR

INTERVAL="${1:-5}"
SAMPLES="${2:-12}"

for ((i = 1; i <= SAMPLES; i++)); do
    LOAD=$(cut -d' ' -f1-3 /proc/loadavg 2>/dev/null || uptime | sed 's/.*load average[s]*: //')
    MEM=$(free -h 2>/dev/null | awk '/^Mem:/{print $3 "/" $2}' || echo n/a)
    DISK=$(df -h / | awk 'NR==2{print $4 " free"}')
    echo "[$(date +%T)] load: $LOAD | mem: $MEM | disk: $DISK"
    [ "$i" -lt "$SAMPLES" ] && sleep "$INTERVAL"
done
`,
			Documentation:    "Prints load average, memory, and root-disk headroom at a fixed interval.",
			SafetyHint:       "Read-only system queries.",
			EstimatedRuntime: "INTERVAL * SAMPLES seconds",
		},
		{
			Name:     "file-processing",
			Keywords: []string{"file", "process", "rename", "move", "sort", "extension", "organize", "clean"},
			Filename: "organize.sh",
			Content: `#!/usr/bin/env bash
# {{DESCRIPTION}}
set -euo pipefail
trap 'echo "error on line $LINENO" >&2' ERR

DIR="${1:?usage: organize.sh DIRECTORY [--dry-run]}"
DRY="${2:-}"

if [ ! -d "$DIR" ]; then
    echo "directory not found: $DIR" >&2
    exit 1
fi

find "$DIR" -maxdepth 1 -type f | while read -r f; do
    name=$(basename "$f")
    ext="${name##*.}"
    [ "$ext" = "$name" ] && ext="no-extension"
    bucket="$DIR/$ext"
    if [ "$DRY" = "--dry-run" ]; then
        echo "would move $name -> $ext/"
    else
        mkdir -p "$bucket"
        mv "$f" "$bucket/"
        echo "moved $name -> $ext/"
    fi
done
`,
			Documentation:    "Sorts files into subdirectories by extension, with a dry-run mode.",
			SafetyHint:       "Moves files within the target directory only; use --dry-run first.",
			EstimatedRuntime: "seconds",
		},
		{
			Name:     "service-management",
			Keywords: []string{"service", "restart", "start", "stop", "status", "systemd", "daemon"},
			Filename: "service.sh",
			Content: `#!/usr/bin/env bash
# {{DESCRIPTION}}
set -euo pipefail
trap 'echo "error on line $LINENO" >&2' ERR

SERVICE="${1:?usage: service.sh SERVICE [status|start|restart]}"
ACTION="${2:-status}"

case "$ACTION" in
    status)  systemctl status "$SERVICE" --no-pager ;;
    start)   systemctl start "$SERVICE" && echo "$SERVICE started" ;;
    restart) systemctl restart "$SERVICE" && echo "$SERVICE restarted" ;;
    *) echo "unknown action: $ACTION" >&2; exit 1 ;;
esac
`,
			Documentation:    "Queries or controls a systemd unit.",
			SafetyHint:       "start/restart affect a live service and usually need sudo.",
			EstimatedRuntime: "seconds",
		},
		{
			Name:     "disk-cleanup",
			Keywords: []string{"cleanup", "disk", "space", "temp", "cache", "old", "delete", "free"},
			Filename: "cleanup.sh",
			Content: `#!/usr/bin/env bash
# {{DESCRIPTION}}
set -euo pipefail
trap 'echo "error on line $LINENO" >&2' ERR

TARGET="${1:-$HOME/.cache}"
DAYS="${2:-30}"

if [ ! -d "$TARGET" ]; then
    echo "directory not found: $TARGET" >&2
    exit 1
fi

echo "files older than $DAYS days under $TARGET:"
find "$TARGET" -type f -mtime +"$DAYS" -print

read -r -p "delete these files? [y/N] " answer
if [ "$answer" = "y" ]; then
    find "$TARGET" -type f -mtime +"$DAYS" -delete
    echo "cleanup complete"
else
    echo "aborted, nothing deleted"
fi
`,
			Documentation:    "Lists and, after confirmation, deletes files older than N days under a directory.",
			SafetyHint:       "Deletes files; always review the listed paths before confirming.",
			EstimatedRuntime: "seconds to minutes",
		},
	}
}

func bashSkeleton(description, note string) string {
	header := "#!/usr/bin/env bash\n# " + sanitize(description) + "\n"
	if note != "" {
		header += "# " + sanitize(note) + "\n"
	}
	return header + `set -euo pipefail
trap 'echo "error on line $LINENO" >&2' ERR

usage() {
    echo "usage: $(basename "$0") [args]" >&2
    exit 64
}

main() {
    echo "starting..."

    # TODO: implement: ` + sanitize(description) + `

    echo "done."
}

main "$@"
`
}
