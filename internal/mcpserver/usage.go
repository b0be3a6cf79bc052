package mcpserver

// UsageGuide explains how words are turned into flashcards.
const UsageGuide = `# flashdeck usage

Words are matched against the image files of the card folder.

- Separate words with commas: "apple, Banana , cat".
- Each word is trimmed and lowercased. Empty words are dropped.
- A file matches when its name without the final extension, trimmed and
  lowercased, equals the word: "Apple.PNG" matches "apple".
- Words without a matching image are skipped; the result lists them under "missed".
- The deck keeps the order of the words. Repeated words repeat their card.
- When two files share a name stem, the first one listed wins.

Tools:

- resolve_words: resolve a word list and return the deck of card URLs.
- list_images: list the image files of the card folder.
- recent_resolutions: show the latest resolution requests.
- upload_card: add an image to the local card folder (local source only).
`
