package generator

// TeamMembers is the fixed roster of every generated board.
var TeamMembers = []string{
	"sarah", "greg", "alex", "maya", "chris", "jordan", "taylor",
	"morgan", "casey", "jamie", "riley", "quinn", "avery", "drew",
}

// LabelPool is the vocabulary generated cards draw their labels from.
var LabelPool = []string{
	"urgent", "P0!!!", "needs-review", "blocked", "waiting-on-design",
	"tech-debt", "quick-win", "spike", "epic", "bug", "feature",
	"enhancement", "documentation", "security", "performance", "ux",
	"backend", "frontend", "infrastructure", "devops", "data",
	"mobile", "web", "api", "integration", "testing", "automation",
	"2019-cleanup", "2020-backlog", "2021-leftover", "2022-priority",
	"2023-roadmap", "2024-initiative", "2025-goal",
}

var taskPrefixes = []string{
	"Fix", "Update", "Refactor", "Implement", "Add", "Remove", "Investigate",
	"Debug", "Optimize", "Review", "Test", "Document", "Deploy", "Configure",
	"Migrate", "Upgrade", "Downgrade", "Integrate", "Split", "Merge",
}

var taskSubjects = []string{
	"login page", "user authentication", "payment flow", "dashboard", "API endpoint",
	"database query", "caching layer", "notification system", "email templates",
	"search functionality", "analytics tracking", "error handling", "logging",
	"performance metrics", "security headers", "CORS policy", "rate limiting",
	"user preferences", "admin panel", "reporting module", "export feature",
	"import wizard", "bulk operations", "webhooks", "SSO integration",
	"mobile responsiveness", "accessibility", "i18n support", "dark mode",
	"onboarding flow", "settings page", "profile editor", "file uploads",
	"image processing", "PDF generation", "email notifications", "SMS alerts",
	"push notifications", "real-time updates", "websocket connection", "GraphQL schema",
	"REST endpoints", "data validation", "input sanitization", "CSRF protection",
}

var taskContexts = []string{
	"for enterprise customers", "per Q4 roadmap", "blocking release",
	"low priority backlog", "tech debt", "customer escalation",
	"compliance requirement", "performance regression", "UX feedback",
	"after security audit", "for mobile app", "for web app",
	"from 2019 sprint", "from hackathon", "POC turned production",
	"legacy system", "microservice migration", "monolith cleanup",
}

var descriptionTemplates = []string{
	"This needs to be done ASAP. See ticket #{number} for details.",
	"Per discussion with stakeholders, we need to address this issue.",
	"Carryover from last sprint. Still relevant.",
	"Originally estimated at {points} story points.",
	"Dependencies: #{dep1}, #{dep2}",
	"AC:\n- [ ] Item 1\n- [ ] Item 2\n- [ ] Item 3",
	"See Confluence page: /wiki/spaces/TEAM/pages/{number}",
	"Follow up from incident INC-{number}",
	"Customer {company} reported this issue.",
	"Blocked by design review - @maya to provide mockups",
	"Need to coordinate with platform team before starting",
	"This is a placeholder - needs refinement",
	"Tech spec: TBD\nTimeline: TBD\nOwner: TBD",
}

var commentTemplates = []string{
	"Still waiting on design...",
	"Still waiting on design feedback",
	"Still blocked by #{number}",
	"@{person} any updates on this?",
	"@{person} pls",
	"@{person} this is urgent!!",
	"Per our last retro, we should prioritize this.",
	"Per our last retro...",
	"I've added the requested changes. PTAL.",
	"LGTM",
	"Looks good to me",
	"+1",
	"Can we discuss this in standup?",
	"Moving to next sprint",
	"Deprioritizing per product decision",
	"This is a duplicate of #{number}",
	"Closing as won't fix",
	"Re-opening - issue persists",
	"Need more context before starting",
	"Blocked waiting for API changes",
	"Design v{version} attached",
	"This broke in prod yesterday",
	"PROD DOWN - need fix ASAP",
	"@chris pls",
	"@chris urgent",
	"@chris this is on fire",
	"I think we can close this as it's been fixed in #{number}",
	"Actually, re-reading the requirements, I think we need to...",
	"Let's sync offline about this one",
	"Good discussion in today's meeting. Action items captured above.",
	"Per conversation with {company}, we need to...",
	"Pushing to next quarter - not enough bandwidth",
	"This is blocking the release",
	"Rollback deployed. Root cause investigation ongoing.",
	"Fixed in commit {commit}",
	"Reverted in commit {commit}",
}
