package models

// PremiumEmojis is the catalogue offered to premium users.
var PremiumEmojis = []string{
	"🔥", "✨", "🌟", "💎", "🚀", "🎯", "🏆", "🎨", "🦄", "🌈",
	"⭐", "💫", "☄️", "🎭", "🎪", "🎮", "🎲", "🎵", "🎶", "🎸",
	"🏅", "🎖️", "🥇", "🥈", "🥉", "⚡", "💥", "🌠", "🌌", "🌙",
	"☀️", "🌞", "🪐", "🌊", "🌸", "🌺", "🌹", "🍀", "🎄", "🎁",
	"🎀", "🎊", "🎉", "🕹️", "🎬", "🎥", "📽️", "🎞️", "🎤", "🎧",
}
