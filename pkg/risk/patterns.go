package risk

import "regexp"

type pattern struct {
	re          *regexp.Regexp
	reason      string
	suggestions []string
}

// blockedPatterns are checked first, against the raw command string,
// regardless of anything else. First match wins.
var blockedPatterns = []pattern{
	{
		re:     regexp.MustCompile(`(^|\s)sudo\s`),
		reason: "privilege escalation is forbidden",
		suggestions: []string{
			"run the command without sudo",
			"ask the operator to perform privileged steps",
		},
	},
	{
		re:     regexp.MustCompile(`\brm\s+(-[A-Za-z]*[rf][A-Za-z]*\s+)+(-[A-Za-z]+\s+)*/(etc|var|usr|sys|boot|lib)?/?\*?(\s|$)`),
		reason: "recursive deletion of a filesystem root or core system directory",
		suggestions: []string{
			"double-check the target path",
			"delete a specific subdirectory instead",
		},
	},
	{
		re:     regexp.MustCompile(`\brm\s+(-[A-Za-z]*[rf][A-Za-z]*\s+)+.*--no-preserve-root`),
		reason: "rm with --no-preserve-root is never allowed",
	},
	{
		re:     regexp.MustCompile(`\bdd\s+if=`),
		reason: "raw disk read/write via dd",
		suggestions: []string{
			"use cp or rsync for file copies",
		},
	},
	{
		re:     regexp.MustCompile(`(>|\bof=)\s*/dev/(sd|hd|nvme|vd)[a-z0-9]`),
		reason: "direct write to a block device",
	},
	{
		re:     regexp.MustCompile(`:\(\)\s*\{\s*:\s*\|\s*:\s*&\s*\}\s*;\s*:`),
		reason: "fork bomb",
	},
	{
		re:     regexp.MustCompile(`\b(mkfs(\.[A-Za-z0-9]+)?|fdisk|parted)\b`),
		reason: "filesystem formatting or partition editing",
	},
	{
		re:     regexp.MustCompile(`\b(curl|wget)\b[^|]*\|\s*(sudo\s+)?(ba|z|da|k)?sh\b`),
		reason: "download-and-execute pipeline",
		suggestions: []string{
			"download to a file and inspect it before executing",
		},
	},
}

// dangerousPatterns are checked after blocked patterns and base-command
// extraction, against the raw command string.
var dangerousPatterns = []pattern{
	{
		re:     regexp.MustCompile(`\brm\s+-[A-Za-z]*r[A-Za-z]*\s+[^|;]*\*`),
		reason: "wildcard-qualified recursive deletion",
		suggestions: []string{
			"list the matching files first",
		},
	},
	{
		re:     regexp.MustCompile(`(^|\s)dd(\s|$)`),
		reason: "dd can destroy data when misdirected",
	},
	{
		re:     regexp.MustCompile(`\b(reboot|shutdown|halt|poweroff)\b`),
		reason: "system power management",
	},
	{
		re:     regexp.MustCompile(`\b(systemctl|service)\s+[A-Za-z0-9_.@-]*\s*(stop|restart|disable)\b`),
		reason: "service stop/restart",
	},
	{
		re:     regexp.MustCompile(`\bkill\s+(-9|-SIGKILL|-s\s+(9|SIGKILL))\b`),
		reason: "forced process termination",
		suggestions: []string{
			"try SIGTERM first",
		},
	},
	{
		re:     regexp.MustCompile(`\bchmod\s+(-[A-Za-z]+\s+)*(777|666)\b`),
		reason: "world-writable permission change",
		suggestions: []string{
			"grant the narrowest permission that works",
		},
	},
	{
		re:     regexp.MustCompile(`\bgit\s+reset\s+--hard\b`),
		reason: "destructive git reset",
		suggestions: []string{
			"git stash preserves uncommitted work",
		},
	},
	{
		re:     regexp.MustCompile(`\bgit\s+clean\s+-[A-Za-z]*f[A-Za-z]*`),
		reason: "destructive git clean",
	},
	{
		re:     regexp.MustCompile(`\bgit\s+push\b.*(--force|\s-f)(\s|$)`),
		reason: "force push rewrites remote history",
		suggestions: []string{
			"--force-with-lease is safer",
		},
	},
	{
		re:     regexp.MustCompile(`\biptables\b\s+(-F|-X|-D|--flush|--delete)`),
		reason: "firewall rule deletion",
	},
	{
		re:     regexp.MustCompile(`\bip\s+link\s+(del|delete)\b`),
		reason: "network link deletion",
	},
}

// readOnlyCommands short-circuit to Safe when they are the base command.
var readOnlyCommands = map[string]struct{}{
	"cat": {}, "less": {}, "more": {}, "head": {}, "tail": {},
	"grep": {}, "egrep": {}, "fgrep": {}, "rg": {},
	"find": {}, "stat": {}, "file": {}, "wc": {}, "diff": {}, "cmp": {},
	"md5sum": {}, "sha1sum": {}, "sha256sum": {}, "sha512sum": {}, "cksum": {},
	"strings": {}, "which": {}, "whereis": {},
}

// safePatterns match against the first pipeline stage with environment
// assignments stripped.
var safePatterns = []pattern{
	{re: regexp.MustCompile(`^(ls|dir|pwd|cd|tree)(\s|$)`), reason: "navigation/listing"},
	{re: regexp.MustCompile(`^(echo|printf)(\s|$)`), reason: "prints to stdout"},
	{re: regexp.MustCompile(`^git\s+(status|log|diff|show|branch|remote|tag|describe)(\s|$)`), reason: "read-only git operation"},
	{re: regexp.MustCompile(`^(apt|apt-get|apt-cache|dnf|yum|brew|npm|pnpm|yarn|pip|pip3|cargo|go)\s+(list|search|info|show|outdated|help|version|env)(\s|$)`), reason: "package manager read operation"},
	{re: regexp.MustCompile(`^(ps|top|htop|free|df|du|uptime|whoami|id|uname|date|env|printenv|hostname|lsb_release)(\s|$)`), reason: "process/system information"},
	{re: regexp.MustCompile(`^(man|help|type|command\s+-v)(\s|$)`), reason: "documentation lookup"},
}

// cautionPatterns match non-destructive mutation against the first stage.
var cautionPatterns = []pattern{
	{re: regexp.MustCompile(`^(mkdir|touch|cp|mv|ln)(\s|$)`), reason: "filesystem mutation"},
	{re: regexp.MustCompile(`^rm\s+[^-\s*]\S*\s*$`), reason: "single-target file removal"},
	{re: regexp.MustCompile(`^chmod\s+[0-7]{3,4}\s+[^/\s]`), reason: "permission change on a local path"},
	{re: regexp.MustCompile(`^git\s+(add|commit|checkout|switch|merge|pull|fetch|stash|cherry-pick|restore)(\s|$)`), reason: "git working-tree mutation"},
	{re: regexp.MustCompile(`^(apt|apt-get|dnf|yum|brew|npm|pnpm|yarn|pip|pip3|cargo|go)\s+(install|update|upgrade|remove|uninstall|add|get|mod)(\s|$)`), reason: "package install/update"},
	{re: regexp.MustCompile(`^(tar|gzip|gunzip|zip|unzip|xz|zstd|bzip2)(\s|$)`), reason: "archive tool"},
	{re: regexp.MustCompile(`^(sed|awk|patch)(\s|$)`), reason: "stream editing"},
}

// systemPaths are roots the flag-based checks treat as protected.
var systemPaths = []string{
	"/etc", "/var", "/usr", "/sys", "/boot", "/lib", "/lib64",
	"/bin", "/sbin", "/dev", "/proc",
}
