package main

// Category is one fixed entry in the known-problem taxonomy. The Description
// is used only for prompt construction, never for runtime matching.
type Category struct {
	CategoryID  string
	Title       string
	Description string
}

// FallbackCategoryID absorbs every ticket the model failed to classify, or
// classified into a label that is not part of the taxonomy.
const FallbackCategoryID = "plan_feature_confusion"

// KnownCategories is the full hand-authored taxonomy, baked into the prompt
// so the model always uses stable, consistent labels. Process-wide read-only.
var KnownCategories = []Category{
	// Connection & Protocol Failures
	{
		CategoryID: "amnezia_config",
		Title:      "Amnezia / Third-Party Client Configurations",
		Description: "User is trying to use Windscribe servers via the AmneziaVPN or AmneziaWG client " +
			"(usually to bypass strict DPI like RKN in Russia). Tickets contain requests for raw " +
			"WireGuard config files, questions on how to format configs for Amnezia, or error logs " +
			"showing handshake timeouts or protocol failures in the Amnezia client.",
	},
	{
		CategoryID: "standard_protocol_failures",
		Title:      "Standard Protocol Connection Failures",
		Description: "User cannot connect using the native Windscribe app on standard networks. App is stuck " +
			"on 'Connecting...' or immediately drops back to disconnected. Tickets often include debug " +
			"logs, mention a specific ISP/mobile carrier, or note that the VPN works on mobile data " +
			"but fails on home Wi-Fi.",
	},
	{
		CategoryID: "restricted_network_censorship",
		Title:      "Restricted Network / Native App Censorship",
		Description: "User is in a known restricted country (Russia, China, Iran) and the native app is " +
			"completely blocked. Stealth, WStunnel, or all protocols are failing. Tickets often mention " +
			"recent government block waves or include screenshots of the app endlessly spinning.",
	},
	{
		CategoryID: "intermittent_disconnections",
		Title:      "Intermittent Disconnections",
		Description: "VPN connects successfully but drops repeatedly. Connection dies when the phone screen " +
			"locks, disconnects every few hours, or fails silently in the background while the UI " +
			"still shows 'Connected'.",
	},
	{
		CategoryID: "slow_speeds_latency",
		Title:      "Slow Speeds / High Latency",
		Description: "User is connected but experiencing terrible performance. Tickets usually name the specific " +
			"server, list base internet speed vs VPN speed, and often include Speedtest screenshots or " +
			"Linux MTR/traceroute logs complaining about high ping in games.",
	},
	// Access & Routing
	{
		CategoryID: "streaming_blocks",
		Title:      "Streaming Service Blocks",
		Description: "User cannot access geo-restricted streaming content. Tickets name the specific platform " +
			"(Netflix, BBC iPlayer, Amazon Prime), the specific Windscribe server, and usually include " +
			"screenshots or text of the streaming service's proxy error code.",
	},
	{
		CategoryID: "website_geofencing_ip_bans",
		Title:      "Website / App Geofencing & IP Bans",
		Description: "User is blocked from a non-streaming service (banks, crypto exchanges, betting apps, " +
			"ChatGPT, or local government portals). Tickets contain screenshots of Cloudflare 'Access " +
			"Denied' pages or complaints that the website has detected VPN usage or flagged the IP " +
			"as high-risk. " +
			"NOT for cases where the Windscribe app or browser extension itself is causing technical " +
			"side-effects (audio failures, video black screens, WebRTC issues, crashes) — those are " +
			"new_trend candidates.",
	},
	{
		CategoryID: "split_tunneling_lan",
		Title:      "Split Tunneling / LAN Failures",
		Description: "User is trying to route specific traffic inside or outside the VPN, and it isn't working. " +
			"Tickets list the exact app or IP they are trying to exclude, or complain about inability " +
			"to cast to their TV, print to a wireless printer, or access a local NAS while Windscribe " +
			"is on.",
	},
	{
		CategoryID: "robert_false_positives",
		Title:      "R.O.B.E.R.T. Blocking (False Positives)",
		Description: "A normal website or app is broken or failing to load assets. Tickets include the specific " +
			"URL that is failing and explicitly mention that turning Windscribe off immediately fixes " +
			"the website.",
	},
	// Billing & Subscriptions
	{
		CategoryID: "refund_requests",
		Title:      "Refund Requests",
		Description: "User explicitly demands money back. Reason is typically: it didn't bypass a block, they " +
			"forgot to cancel a trial, or they bought the wrong plan. Tickets usually include order " +
			"numbers, transaction IDs, or the email address tied to the payment.",
	},
	{
		CategoryID: "payment_failures",
		Title:      "Payment Failures / Declines",
		Description: "User is trying to purchase a plan but the payment gateway rejects them. Tickets include " +
			"error codes from Paymentwall, Apple App Store, or Google Play, or state that their credit " +
			"card was declined despite having funds.",
	},
	{
		CategoryID: "crypto_uncredited",
		Title:      "Crypto Payment Uncredited",
		Description: "User paid with cryptocurrency but their account is still on the Free tier. Tickets almost " +
			"always include a blockchain transaction hash/ID, the specific coin used (BTC, ETH, XMR), " +
			"and complaints that the funds left their wallet hours or days ago.",
	},
	{
		CategoryID: "plan_feature_confusion",
		Title:      "Plan & Feature Confusion",
		Description: "User bought a plan but is confused about what they see in the app. Tickets ask why they " +
			"still see 'Free' servers with stars, why their custom plan doesn't have unlimited data, " +
			"or complain that a specific server they were looking for isn't listed.",
	},
	{
		CategoryID: "cancellation_autorenewal",
		Title:      "Cancellation / Auto-Renew Disputes",
		Description: "User is angry about an automated charge or wants to stop future billing. Tickets ask how " +
			"to find the cancel button on the website, or demand a reversal of a renewal charge they " +
			"didn't authorize.",
	},
	// Account & Authentication
	{
		CategoryID: "lost_access_password_reset",
		Title:      "Lost Access / Password Resets",
		Description: "User cannot log into their account. They forgot their password, no longer have access to " +
			"the email used to sign up, or never linked an email to their account in the first place " +
			"and are now locked out.",
	},
	{
		CategoryID: "2fa_security_lockout",
		Title:      "2FA / Security Lockouts",
		Description: "User is blocked from logging in due to account security features. Lost their phone or " +
			"authenticator app, don't have backup codes, or are stuck in an endless loop of CAPTCHAs " +
			"on the login screen.",
	},
	{
		CategoryID: "tv_lazy_login",
		Title:      "TV / Lazy Login Failures",
		Description: "User is trying to log into a Smart TV app using the 6-digit code. App says 'Invalid Code' " +
			"or 'Code Expired'. Multiple codes generated on phone/computer with none of them working.",
	},
	// Advanced Features & Setup
	{
		CategoryID: "manual_config_generation",
		Title:      "Manual Config Generation Issues",
		Description: "User is trying to download config files from the Windscribe website and it is failing. " +
			"The 'Generate Key' button is missing, or they get an error saying 'You have no WireGuard " +
			"keypairs'.",
	},
	{
		CategoryID: "static_ip_port_forwarding",
		Title:      "Static IP / Port Forwarding Difficulties",
		Description: "User bought a Static IP but cannot get their ports to open. Tickets mention the specific " +
			"port number, the application (qBittorrent, Plex), and often include screenshots from " +
			"port-checker websites showing the port is 'Closed'.",
	},
}

func validCategoryIDs() map[string]bool {
	ids := make(map[string]bool, len(KnownCategories))
	for _, c := range KnownCategories {
		ids[c.CategoryID] = true
	}
	return ids
}

func categoryByID(id string) (Category, bool) {
	for _, c := range KnownCategories {
		if c.CategoryID == id {
			return c, true
		}
	}
	return Category{}, false
}
