package catalog

// DefaultExercises 預設題目
//
// ID 與時間戳記由存儲層在寫入時決定。
func DefaultExercises() []Exercise {
	return []Exercise{
		{
			Name:    "Async Case",
			Content: "// Write an async function that fetches user data\n\nasync function fetchUserData(userId) {\n  // Your code here\n}",
			Solution: "async function fetchUserData(userId) {\n  try {\n    const response = await fetch(`/api/users/${userId}`);\n" +
				"    const data = await response.json();\n    return data;\n  } catch (error) {\n" +
				"    console.error(\"Error fetching user data:\", error);\n    throw error;\n  }\n}",
		},
		{
			Name:    "Promises",
			Content: "// Chain three promises together\n\nfunction chainPromises() {\n  // Your code here\n}",
			Solution: "function chainPromises() {\n  return Promise.resolve(1)\n    .then(value => value + 1)\n" +
				"    .then(value => value * 2)\n    .then(value => `Final value: ${value}`)\n" +
				"    .catch(error => console.error(error));\n}",
		},
		{
			Name:    "Array Methods",
			Content: "// Transform this array using map and filter\nconst numbers = [1, 2, 3, 4, 5, 6];\n\n// Your code here",
			Solution: "const numbers = [1, 2, 3, 4, 5, 6];\nconst result = numbers\n" +
				"  .filter(num => num % 2 === 0)\n  .map(num => num * 2);",
		},
		{
			Name:    "Closure",
			Content: "// Create a counter using closure\n\nfunction createCounter() {\n  // Your code here\n}",
			Solution: "function createCounter() {\n  let count = 0;\n  return {\n    increment: () => ++count,\n" +
				"    decrement: () => --count,\n    getCount: () => count\n  };\n}",
		},
	}
}
