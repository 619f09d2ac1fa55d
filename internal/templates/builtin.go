package templates

// builtinTemplates carries the shipped fallback stories, keyed by
// "<theme>.<language>". Folder-provided files with the same names take
// precedence.
var builtinTemplates = map[string]string{
	"forgiveness.en": `In a small village near Madurai lived an elderly farmer named Raman, respected for his wisdom and kindness. One harvest season a young man from a neighboring village, desperate to feed his family, stole crops from Raman's field.

When the thief was caught, the villagers expected punishment. Instead, Raman asked about the young man's family, handed him a sack of rice, and offered him work in the fields. The villagers were astonished, but Raman only smiled.

Years later the young man became one of the most trusted farmhands in the region, and the two families shared every festival together. {{ if .VerseEnglish }}As the Kural teaches: {{ .VerseEnglish }}{{ end }}`,

	"gratitude.en": `Meena was the first in her fishing village to attend college, and only because her teacher Velamma spent her own savings on Meena's books. Every evening after lectures, Meena wrote down one thing the old teacher had taught her.

When Meena returned years later as a doctor, she found the school roof leaking and Velamma still teaching under it. Without a word to anyone she had the school rebuilt, and on the opening day she placed her first stethoscope in her teacher's hands.

The village still tells of it, not for the building, but for the remembering. {{ if .VerseEnglish }}As the Kural teaches: {{ .VerseEnglish }}{{ end }}`,

	"honesty.en": `In a busy Chidambaram marketplace, the merchant Kannan found a pouch of gold coins beneath his stall, dropped by a trader who had already sailed on. For three seasons Kannan kept the pouch sealed, telling every caravan that passed to spread word of it.

When the trader finally returned, ruined by a failed voyage, he found his gold untouched and his name remembered. He wept, and offered half the pouch in reward. Kannan refused, saying the coins had never been his to divide.

From that day, traders sealed bargains in Kannan's shop with only a word, for his word weighed more than any coin. {{ if .VerseEnglish }}As the Kural teaches: {{ .VerseEnglish }}{{ end }}`,

	"perseverance.en": `Valli's family had woven baskets on the banks of the Kaveri for generations, but the year the floods came, the reeds drowned and orders stopped. Her brothers left for the city; Valli stayed, walking farther each dawn to find reeds on higher ground.

She wove at night by a single lamp, and when the market reopened her baskets were the only ones on the stone steps. A merchant from Thanjavur bought everything she carried and asked for a hundred more.

The floods returned in other years, but hunger never did. {{ if .VerseEnglish }}As the Kural teaches: {{ .VerseEnglish }}{{ end }}`,

	"compassion.en": `During the driest summer anyone could remember, the well behind Lakshmi's house was the last in the village still giving water. Her neighbors braced for her to sell it by the potful, as others would have.

Instead, Lakshmi hung a brass bell by her gate and told the village to ring it at any hour. She drew water for farmers at dawn and for travelers at midnight, asking only that they rest in the shade before walking on.

When the rains finally came, the village gathered at her gate, rang the bell once, and planted a neem tree beside it. {{ if .VerseEnglish }}As the Kural teaches: {{ .VerseEnglish }}{{ end }}`,

	"default.en": `In a Tamil village wrapped in paddy fields there lived people whose days were shaped by an old teaching{{ if .ChapterEnglish }} on {{ .ChapterEnglish | lower }}{{ end }}. An elder would recite the couplet at dusk, and the children would carry it into their games and their quarrels.

One season, a dispute tested the village, and it was the old verse, remembered at the right moment, that showed the way through. What force could not settle, the couplet settled in a single evening.

The dispute is long forgotten, but the verse is still recited at dusk. {{ if .VerseEnglish }}As the Kural teaches: {{ .VerseEnglish }}{{ end }}`,

	"default.ta": `நெல் வயல்கள் சூழ்ந்த ஒரு தமிழ் கிராமத்தில், பழைய வள்ளுவர் வாக்கின்படி வாழ்ந்த மக்கள் இருந்தனர். மாலை நேரத்தில் ஊர்ப் பெரியவர் குறளை ஓத, குழந்தைகள் அதை விளையாட்டிலும் வாழ்விலும் சுமந்து சென்றனர்.

ஒரு பருவத்தில் ஊரில் பெரும் சிக்கல் எழுந்தது. சரியான தருணத்தில் நினைவுக்கு வந்த அந்தக் குறளே வழி காட்டியது. பலத்தால் தீராதது, ஒரு மாலைப் பொழுதில் குறளால் தீர்ந்தது.

அந்தச் சிக்கல் மறக்கப்பட்டது; குறள் இன்றும் மாலை தோறும் ஒலிக்கிறது. {{ if .VerseTamil }}வள்ளுவர் கூறியது: {{ .VerseTamil }}{{ end }}`,
}
